package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

type topic[T any] struct {
	subscribers map[string]func(msg T)

	lock sync.Mutex
}

func newTopic[T any]() *topic[T] {
	return &topic[T]{
		subscribers: make(map[string]func(msg T)),
	}
}

func (t *topic[T]) publish(msg T) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, fn := range t.subscribers {
		fn(msg)
	}
}

// subscribe returns an unsub func reporting how many subscribers are left.
func (t *topic[T]) subscribe(fn func(msg T)) (unsub func() int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	id := uuid.NewString()
	t.subscribers[id] = fn

	return func() int {
		t.lock.Lock()
		defer t.lock.Unlock()

		delete(t.subscribers, id)

		return len(t.subscribers)
	}
}
