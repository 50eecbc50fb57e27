package history

import "strings"

const (
	audioOpen  = "<audio"
	audioClose = "</audio>"

	autoplayControls = "controls autoplay>"
	plainControls    = "controls>"
)

// Turn is a (user message, reply) pair.
type Turn [2]string

func (t Turn) Reply() string {
	return t[1]
}

// History is owned by the chat host. Internal keeps the source replies, Visible what is displayed.
// Only the reply half of Visible is ever rewritten here.
type History struct {
	Internal []Turn `json:"internal"`
	Visible  []Turn `json:"visible"`
}

func (h *History) Len() int {
	return min(len(h.Internal), len(h.Visible))
}

// AudioElement returns the leading <audio ...></audio> element of a visible reply.
func AudioElement(reply string) (string, bool) {
	if !strings.HasPrefix(reply, audioOpen) {
		return "", false
	}

	before, _, found := strings.Cut(reply, audioClose)
	if !found {
		return "", false
	}

	return before + audioClose, true
}

// StripAudio permanently replaces every visible reply with its internal text.
func StripAudio(h *History) *History {
	for i := 0; i < h.Len(); i++ {
		h.Visible[i][1] = h.Internal[i][1]
	}

	return h
}

// ToggleText shows or hides the reply text under audio players. Replies without a leading
// audio element are left alone.
func ToggleText(h *History, showText bool) *History {
	for i := 0; i < h.Len(); i++ {
		element, ok := AudioElement(h.Visible[i][1])
		if !ok {
			continue
		}

		if showText {
			h.Visible[i][1] = element + "\n\n" + h.Internal[i][1]
		} else {
			h.Visible[i][1] = element
		}
	}

	return h
}

// Deautoplay runs before a new reply is rendered, so already shown players must not start again.
func Deautoplay(h *History) *History {
	for i := range h.Visible {
		h.Visible[i][1] = strings.ReplaceAll(h.Visible[i][1], autoplayControls, plainControls)
	}

	return h
}

// Clone returns a deep copy so transforms can be applied without touching the caller's value.
func (h *History) Clone() *History {
	return &History{
		Internal: append([]Turn(nil), h.Internal...),
		Visible:  append([]Turn(nil), h.Visible...),
	}
}
