package processor

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sync"

	"vitstts/internal/app/history"
	"vitstts/internal/app/roster"
	"vitstts/internal/app/settings"
	ttsprocessor "vitstts/pkg/tts_processor"
	"vitstts/pkg/vits"
)

const WaitingMessage = "*Waiting ...*"

var _ Hooks = (*Processor)(nil)

type Processor struct {
	logger *slog.Logger

	settings    *settings.Store
	synthesizer Synthesizer
	audio       AudioWriter
	roster      RosterFetcher

	voicesLock     sync.Mutex
	voices         []string
	voicesDegraded bool
}

func NewProcessor(logger *slog.Logger, settings *settings.Store, synthesizer Synthesizer, audio AudioWriter, roster RosterFetcher) *Processor {
	return &Processor{
		logger: logger,

		settings:    settings,
		synthesizer: synthesizer,
		audio:       audio,
		roster:      roster,
	}
}

func (p *Processor) Settings() *settings.Store {
	return p.settings
}

func (p *Processor) StateModifier(state State) State {
	if p.settings.Snapshot().Activate {
		state.Stream = false
	}

	return state
}

func (p *Processor) InputModifier(text string) InputResult {
	res := InputResult{
		Text: text,
	}

	if p.settings.Snapshot().Activate {
		res.ProcessingMessage = WaitingMessage
	}

	return res
}

func (p *Processor) HistoryModifier(h *history.History) *history.History {
	return history.Deautoplay(h)
}

// OutputModifier synthesizes the reply and returns the audio player markup. Synthesis and
// write failures are returned as is, a reply is never shown with a broken player.
func (p *Processor) OutputModifier(ctx context.Context, text string) (string, error) {
	params := p.settings.Snapshot()
	if !params.Activate {
		return text, nil
	}

	original := html.UnescapeString(text)

	speech := ttsprocessor.Sanitize(text)
	if speech == "" {
		p.logger.Debug("nothing to speak, skipping synthesis")
		return text, nil
	}

	voiceID := roster.VoiceID(params.SelectedVoice)
	if voiceID == "" {
		voiceID = roster.VoiceID(roster.DefaultVoice)
	}

	audio, err := p.synthesizer.Synthesize(ctx, &vits.SynthesisRequest{
		BaseURL:   params.BaseURL,
		Text:      speech,
		VoiceID:   voiceID,
		Length:    params.Length,
		Noise:     params.Noise,
		NoiseW:    params.NoiseW,
		Streaming: params.Streaming,
	})
	if err != nil {
		return "", fmt.Errorf("failed to synthesize reply: %w", err)
	}

	path, err := p.audio.Write(audio)
	if err != nil {
		return "", err
	}

	p.logger.Info("reply synthesized", "file", path, "voice", voiceID, "bytes", len(audio))

	out := AudioMarkup(path, params.Autoplay)
	if params.ShowText {
		out += "\n\n" + original
	}

	return out, nil
}

// AudioMarkup renders the player referencing a stored audio file.
func AudioMarkup(path string, autoplay bool) string {
	controls := "controls"
	if autoplay {
		controls += " autoplay"
	}

	return fmt.Sprintf(`<audio src="file/%s" %s></audio>`, path, controls)
}

// UI loads the roster on first use and keeps the selected voice inside it.
func (p *Processor) UI(ctx context.Context) *Panel {
	p.voicesLock.Lock()
	loaded := p.voices != nil
	p.voicesLock.Unlock()

	if !loaded {
		res := p.fetchVoices(ctx)
		voice := p.settings.EnsureVoice(res.Voices)
		p.logger.Info("voice selected", "voice", voice)
	}

	p.voicesLock.Lock()
	defer p.voicesLock.Unlock()

	return &Panel{
		Params:         p.settings.Snapshot(),
		Voices:         append([]string(nil), p.voices...),
		VoicesDegraded: p.voicesDegraded,
	}
}

// RefreshVoices refetches the roster and selects its first entry.
func (p *Processor) RefreshVoices(ctx context.Context) roster.Roster {
	res := p.fetchVoices(ctx)
	if len(res.Voices) == 0 {
		return res
	}

	if err := p.settings.Update(settings.KeySelectedVoice, res.Voices[0]); err != nil {
		p.logger.Error("failed to select voice", "err", err)
	}

	return res
}

func (p *Processor) fetchVoices(ctx context.Context) roster.Roster {
	res := p.roster.Fetch(ctx, p.settings.Snapshot().BaseURL)

	p.voicesLock.Lock()
	defer p.voicesLock.Unlock()

	p.voices = res.Voices
	p.voicesDegraded = res.Degraded

	return res
}
