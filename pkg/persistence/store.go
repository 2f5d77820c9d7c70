package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrUnsupportedVersion is returned when a state file was written by a newer
// format.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

type document struct {
	Version   int                  `json:"version"`
	SavedAt   time.Time            `json:"saved_at"`
	Stopwatch *stopwatch.Stopwatch `json:"stopwatch"`
}

// StopwatchStore reads and writes the stopwatch document.
type StopwatchStore struct {
	mu    sync.Mutex
	fs    afero.Fs
	path  string
	clock clockwork.Clock
}

// NewStopwatchStore creates a store for path on fs. A nil fs means the OS
// filesystem and a nil clock the real one.
func NewStopwatchStore(fs afero.Fs, path string, clock clockwork.Clock) *StopwatchStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StopwatchStore{fs: fs, path: path, clock: clock}
}

// Path returns the state file path.
func (s *StopwatchStore) Path() string {
	return s.path
}

// Save writes sw. The file is replaced through a temporary sibling so a
// crash mid-write leaves the previous state intact.
func (s *StopwatchStore) Save(sw *stopwatch.Stopwatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(document{
		Version:   StateVersion,
		SavedAt:   s.clock.Now(),
		Stopwatch: sw,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stopwatch: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Load reads the stopwatch. It returns nil, nil if no state was saved yet.
func (s *StopwatchStore) Load() (*stopwatch.Stopwatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	if doc.Version > StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if doc.Stopwatch == nil {
		return nil, nil
	}
	doc.Stopwatch.Normalize()
	return doc.Stopwatch, nil
}

// Clear removes the state file.
func (s *StopwatchStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
