package persistence

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

// Store is where the Saver writes.
type Store interface {
	Save(sw *stopwatch.Stopwatch) error
}

// Saver writes stopwatch snapshots in the background. Submit never blocks;
// when snapshots arrive faster than they are written only the newest is
// kept.
type Saver struct {
	store  Store
	logger zerolog.Logger

	flushMu sync.Mutex

	mu      sync.Mutex
	latest  *stopwatch.Stopwatch
	written uint64
	signal  chan struct{}
	done    chan struct{}
	running bool
}

// NewSaver returns a Saver for store. logger may be nil.
func NewSaver(store Store, logger *zerolog.Logger) *Saver {
	s := &Saver{
		store:  store,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if logger != nil {
		s.logger = *logger
	} else {
		s.logger = log.With().Str("component", "persistence").Logger()
	}
	return s
}

// Submit queues sw for writing. It matches engine.Observer.
func (s *Saver) Submit(sw *stopwatch.Stopwatch) {
	s.mu.Lock()
	s.latest = sw
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Run writes queued snapshots until ctx is done, then flushes what is left.
func (s *Saver) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-s.signal:
			s.Flush()
		}
	}
}

// Done is closed when Run has returned.
func (s *Saver) Done() <-chan struct{} {
	return s.done
}

// Flush writes the pending snapshot, if any, synchronously.
func (s *Saver) Flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	sw := s.latest
	s.latest = nil
	s.mu.Unlock()

	if sw == nil {
		return
	}
	if err := s.store.Save(sw); err != nil {
		s.logger.Error().Err(err).Msg("failed to save stopwatch")
		return
	}

	s.mu.Lock()
	s.written++
	s.mu.Unlock()
}

// Written returns how many snapshots reached the store.
func (s *Saver) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}
