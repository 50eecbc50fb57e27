package roster

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"vitstts/pkg/vits"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultVoice is offered when the server can't be reached so the selector is never empty.
const DefaultVoice = "0 | default | auto"

var errEmptyRoster = errors.New("vits server returned no voices")

type SpeakerLister interface {
	Speakers(ctx context.Context, baseURL string) ([]vits.Speaker, error)
}

// Roster is a best-effort result: Voices is never empty, Err only explains a degraded roster.
type Roster struct {
	Voices   []string
	Degraded bool
	Err      error
}

type Fetcher struct {
	logger   *slog.Logger
	speakers SpeakerLister
}

func NewFetcher(logger *slog.Logger, speakers SpeakerLister) *Fetcher {
	return &Fetcher{
		logger:   logger,
		speakers: speakers,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, baseURL string) Roster {
	speakers, err := f.speakers.Speakers(ctx, baseURL)
	if err == nil && len(speakers) == 0 {
		err = errEmptyRoster
	}

	if err != nil {
		fallbacks.Inc()
		f.logger.Warn("failed to fetch voices, using default roster", "base_url", baseURL, "err", err)

		return Roster{
			Voices:   []string{DefaultVoice},
			Degraded: true,
			Err:      err,
		}
	}

	voices := make([]string, 0, len(speakers))
	for _, speaker := range speakers {
		voices = append(voices, speaker.Label())
	}

	return Roster{
		Voices: voices,
	}
}

// VoiceID extracts the speaker id from a selector label.
func VoiceID(label string) string {
	id, _, _ := strings.Cut(label, " | ")
	return strings.TrimSpace(id)
}

var fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
	Subsystem: "roster",
	Name:      "fallbacks_total",
})

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(fallbacks)
}
