package settings

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
)

const (
	KeyActivate      = "activate"
	KeyAutoplay      = "autoplay"
	KeyBaseURL       = "base_url"
	KeyLength        = "length"
	KeyNoise         = "noise"
	KeyNoiseW        = "noisew"
	KeySelectedVoice = "selected_voice"
	KeyShowText      = "show_text"
	KeyStreaming     = "streaming"
)

var ErrUnknownKey = errors.New("unknown settings key")

// Params is the flat option set edited from the settings panel. Numeric synthesis
// parameters are kept as strings and passed through to the vits server untouched.
type Params struct {
	Activate      bool   `yaml:"activate" json:"activate"`
	Autoplay      bool   `yaml:"autoplay" json:"autoplay"`
	BaseURL       string `yaml:"base_url" json:"base_url"`
	Length        string `yaml:"length" json:"length"`
	Noise         string `yaml:"noise" json:"noise"`
	NoiseW        string `yaml:"noisew" json:"noisew"`
	SelectedVoice string `yaml:"selected_voice" json:"selected_voice"`
	ShowText      bool   `yaml:"show_text" json:"show_text"`
	Streaming     bool   `yaml:"streaming" json:"streaming"`
}

func DefaultParams() Params {
	return Params{
		BaseURL:  "http://localhost:23456/",
		Length:   "1.3",
		Noise:    "0.4",
		NoiseW:   "0.5",
		ShowText: true,
	}
}

// Store is the session-wide settings object. It is handed to every component that needs it
// instead of living in a package global.
type Store struct {
	lock   sync.RWMutex
	params Params
}

func New(defaults Params) *Store {
	return &Store{
		params: defaults,
	}
}

func (s *Store) Snapshot() Params {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.params
}

func (s *Store) boolField(p *Params, key string) *bool {
	switch key {
	case KeyActivate:
		return &p.Activate
	case KeyAutoplay:
		return &p.Autoplay
	case KeyShowText:
		return &p.ShowText
	case KeyStreaming:
		return &p.Streaming
	default:
		return nil
	}
}

func (s *Store) stringField(p *Params, key string) *string {
	switch key {
	case KeyBaseURL:
		return &p.BaseURL
	case KeyLength:
		return &p.Length
	case KeyNoise:
		return &p.Noise
	case KeyNoiseW:
		return &p.NoiseW
	case KeySelectedVoice:
		return &p.SelectedVoice
	default:
		return nil
	}
}

func (s *Store) Get(key string) (any, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if b := s.boolField(&s.params, key); b != nil {
		return *b, true
	}

	if str := s.stringField(&s.params, key); str != nil {
		return *str, true
	}

	return nil, false
}

// Update sets a single option. Values are coerced to the option type but never range checked.
func (s *Store) Update(key string, value any) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if b := s.boolField(&s.params, key); b != nil {
		switch v := value.(type) {
		case bool:
			*b = v
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("failed to parse %s value %q: %w", key, v, err)
			}
			*b = parsed
		default:
			return fmt.Errorf("unsupported %s value type %T", key, value)
		}

		return nil
	}

	if str := s.stringField(&s.params, key); str != nil {
		*str = fmt.Sprint(value)
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// EnsureVoice keeps the selected voice inside the given roster, falling back to its first entry.
func (s *Store) EnsureVoice(voices []string) string {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(voices) == 0 {
		return s.params.SelectedVoice
	}

	if !slices.Contains(voices, s.params.SelectedVoice) {
		s.params.SelectedVoice = voices[0]
	}

	return s.params.SelectedVoice
}

func Keys() []string {
	return []string{
		KeyActivate,
		KeyAutoplay,
		KeyBaseURL,
		KeyLength,
		KeyNoise,
		KeyNoiseW,
		KeySelectedVoice,
		KeyShowText,
		KeyStreaming,
	}
}
