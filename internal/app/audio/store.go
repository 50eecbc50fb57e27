package audio

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	NamingTimestamp = "timestamp"
	NamingCounter   = "counter"
)

// colon-free so the name is valid on every filesystem
const timestampLayout = "2006-01-02T15-04-05.000000Z"

type Config struct {
	Dir    string `yaml:"dir"`
	Naming string `yaml:"naming"`
}

// Store writes one file per synthesized reply. Files are never removed.
type Store struct {
	dir    string
	naming string
	ext    string

	now func() time.Time

	lock    sync.Mutex
	counter int
}

func New(cfg *Config, ext string) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "outputs"
	}

	naming := cfg.Naming
	if naming == "" {
		naming = NamingTimestamp
	}

	if naming != NamingTimestamp && naming != NamingCounter {
		return nil, fmt.Errorf("unknown audio naming %q", naming)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}

	s := &Store{
		dir:    dir,
		naming: naming,
		ext:    strings.TrimPrefix(ext, "."),
		now:    time.Now,
	}

	if naming == NamingCounter {
		last, err := lastCounter(dir)
		if err != nil {
			return nil, err
		}

		s.counter = last
	}

	return s, nil
}

// lastCounter picks up numbering after a restart so existing files are not overwritten.
func lastCounter(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read audio dir: %w", err)
	}

	last := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if n, err := strconv.Atoi(name); err == nil && n > last {
			last = n
		}
	}

	return last, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// a frozen clock or a foreign file can collide with the next name
const maxAttempts = 100

func (s *Store) nextName(attempt int, stamp string) string {
	if s.naming == NamingCounter {
		s.counter++
		return strconv.Itoa(s.counter) + "." + s.ext
	}

	if attempt > 0 {
		return stamp + "-" + strconv.Itoa(attempt) + "." + s.ext
	}

	return stamp + "." + s.ext
}

// create opens a file that did not exist before, existing artifacts are never overwritten.
func (s *Store) create() (*os.File, string, error) {
	stamp := s.now().UTC().Format(timestampLayout)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		name := s.nextName(attempt, stamp)

		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}

		if err != nil {
			return nil, "", fmt.Errorf("failed to create audio file: %w", err)
		}

		return f, name, nil
	}

	return nil, "", fmt.Errorf("failed to pick a free audio file name after %d attempts", maxAttempts)
}

// Write stores audio verbatim and returns its slash separated path, relative to the working dir.
func (s *Store) Write(audio []byte) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	f, name, err := s.create()
	if err != nil {
		return "", err
	}

	if _, err := f.Write(audio); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close audio file: %w", err)
	}

	return path.Join(filepath.ToSlash(s.dir), name), nil
}
