// Package race holds the active run as supplied by the schedule side. The
// clock engine only reads it.
package race

import (
	"sync"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

// Runner describes one competitor.
type Runner struct {
	Name   string `json:"name"`
	Stream string `json:"stream,omitempty"`
}

// Run is one timed segment with up to four runner slots.
type Run struct {
	Name    string    `json:"name"`
	Runners []*Runner `json:"runners"`
	Coop    bool      `json:"coop"`
}

// Assigned reports which slots have a runner. Entries past the fourth are
// ignored.
func (r Run) Assigned() [stopwatch.Slots]bool {
	var a [stopwatch.Slots]bool
	for i, rn := range r.Runners {
		if i >= stopwatch.Slots {
			break
		}
		a[i] = rn != nil
	}
	return a
}

// AssignedCount returns how many slots have a runner.
func (r Run) AssignedCount() int {
	n := 0
	for _, a := range r.Assigned() {
		if a {
			n++
		}
	}
	return n
}

// Holder is a concurrency-safe cell for the active run.
type Holder struct {
	mu  sync.RWMutex
	run Run
}

// NewHolder returns a Holder seeded with run.
func NewHolder(run Run) *Holder {
	return &Holder{run: run}
}

// ActiveRun returns the current run.
func (h *Holder) ActiveRun() Run {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.run
}

// Set replaces the current run.
func (h *Holder) Set(run Run) {
	h.mu.Lock()
	h.run = run
	h.mu.Unlock()
}
