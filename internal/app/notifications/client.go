package notifications

// delivery is best effort, events only refresh what the settings panel and host display

import (
	"context"

	"vitstts/internal/app/history"
	"vitstts/pkg/pubsub"
)

type EventType string

const (
	EventSettings EventType = "settings"
	EventVoices   EventType = "voices"
	EventRedraw   EventType = "redraw"
	EventStrip    EventType = "strip_controls"
)

const (
	topicAll       = "all"
	topicBroadcast = "broadcast"
	chatTopicPref  = "chat:"
)

type Event struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chat_id,omitempty"`

	History  *history.History `json:"history,omitempty"`
	Settings any              `json:"settings,omitempty"`
	Voices   []string         `json:"voices,omitempty"`
	Controls any              `json:"controls,omitempty"`
}

func New() *Client {
	return &Client{
		ps: pubsub.New[*Event](),
	}
}

type Client struct {
	ps *pubsub.PubSub[*Event]
}

// Notify fans the event out to subscribers of its chat. Events without a chat id go to everyone.
// Slow subscribers miss events instead of blocking the caller.
func (c *Client) Notify(event *Event) {
	c.ps.Publish(topicAll, event)

	if event.ChatID == "" {
		c.ps.Publish(topicBroadcast, event)
	} else {
		c.ps.Publish(chatTopicPref+event.ChatID, event)
	}
}

// Subscribe returns a channel closed once ctx is done. An empty chatID receives every event.
func (c *Client) Subscribe(ctx context.Context, chatID string) <-chan *Event {
	events := make(chan *Event, 16)

	handler := func(event *Event) {
		select {
		case events <- event:
		default:
		}
	}

	var unsubs []func()
	if chatID == "" {
		unsubs = append(unsubs, c.ps.Subscribe(topicAll, handler))
	} else {
		unsubs = append(unsubs,
			c.ps.Subscribe(chatTopicPref+chatID, handler),
			c.ps.Subscribe(topicBroadcast, handler),
		)
	}

	go func() {
		<-ctx.Done()

		for _, unsub := range unsubs {
			unsub()
		}

		close(events)
	}()

	return events
}
