package processor

import (
	"context"

	"vitstts/internal/app/history"
	"vitstts/internal/app/roster"
	"vitstts/internal/app/settings"
	"vitstts/pkg/vits"
)

// Hooks is the fixed set of extension points a chat host calls.
type Hooks interface {
	// StateModifier adjusts generation state before a request.
	StateModifier(state State) State
	// InputModifier sees the user text before a request.
	InputModifier(text string) InputResult
	// HistoryModifier rewrites the history before it is rendered.
	HistoryModifier(h *history.History) *history.History
	// OutputModifier turns a generated reply into its displayed form.
	OutputModifier(ctx context.Context, text string) (string, error)
	// UI describes the settings panel.
	UI(ctx context.Context) *Panel
}

// State is the part of the host generation state this extension touches.
type State struct {
	Stream bool `json:"stream"`
}

type InputResult struct {
	Text              string `json:"text"`
	ProcessingMessage string `json:"processing_message,omitempty"`
}

// Panel is everything needed to render the settings controls.
type Panel struct {
	Params         settings.Params `json:"params"`
	Voices         []string        `json:"voices"`
	VoicesDegraded bool            `json:"voices_degraded"`
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req *vits.SynthesisRequest) ([]byte, error)
}

type AudioWriter interface {
	Write(audio []byte) (string, error)
}

type RosterFetcher interface {
	Fetch(ctx context.Context, baseURL string) roster.Roster
}
