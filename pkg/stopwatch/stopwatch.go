// Package stopwatch defines the persisted race clock aggregate: the root time,
// its run state and one optional result per runner slot.
package stopwatch

import (
	"fmt"
	"sort"
	"time"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/timevalue"
)

// Slots is the fixed number of runner result slots.
const Slots = 4

// State is the run state of the stopwatch.
type State uint8

const (
	// Stopped means the clock is not ticking and at least one assigned
	// runner has no result.
	Stopped State = iota

	// Running means the 1 Hz tick is armed.
	Running

	// Finished means every assigned runner holds a result.
	Finished
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if s > Finished {
		return nil, fmt.Errorf("invalid stopwatch state %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stopped":
		*s = Stopped
	case "running":
		*s = Running
	case "finished":
		*s = Finished
	default:
		return fmt.Errorf("invalid stopwatch state %q", b)
	}
	return nil
}

// RunnerResult is the recorded finish of one runner.
type RunnerResult struct {
	timevalue.Value

	// Forfeit marks a runner that did not complete the objective.
	Forfeit bool `json:"forfeit"`

	// Place is the 1-based rank among non-forfeit results, 0 otherwise.
	Place int `json:"place"`
}

// Stopwatch is the root aggregate.
type Stopwatch struct {
	State State `json:"state"`
	timevalue.Value
	Results [Slots]*RunnerResult `json:"results"`
}

// New returns a stopped stopwatch at zero.
func New(now time.Time) *Stopwatch {
	return &Stopwatch{
		State: Stopped,
		Value: timevalue.New(0, now),
	}
}

// Clone returns a deep copy.
func (sw *Stopwatch) Clone() *Stopwatch {
	c := *sw
	for i, r := range sw.Results {
		if r != nil {
			rc := *r
			c.Results[i] = &rc
		}
	}
	return &c
}

// Complete records a result for the slot. A missing result is created from
// the current root time; an existing one keeps its time and only has its
// forfeit flag replaced.
func (sw *Stopwatch) Complete(index int, forfeit bool, now time.Time) {
	r := sw.Results[index]
	if r == nil {
		r = &RunnerResult{Value: timevalue.New(sw.Raw, now)}
		sw.Results[index] = r
	}
	r.Forfeit = forfeit
}

// Clear removes the slot's result and reports whether there was one.
func (sw *Stopwatch) Clear(index int) bool {
	had := sw.Results[index] != nil
	sw.Results[index] = nil
	return had
}

// ClearAll removes every result.
func (sw *Stopwatch) ClearAll() {
	sw.Results = [Slots]*RunnerResult{}
}

// Recalculate assigns places to the non-forfeit results in ascending time
// order, ties keeping slot order, and zeroes every other place. It reports
// whether every assigned slot now holds a result. A run with no assigned
// slots is never complete.
func (sw *Stopwatch) Recalculate(assigned [Slots]bool) (allFinished bool) {
	ranked := make([]*RunnerResult, 0, Slots)
	for _, r := range sw.Results {
		if r == nil {
			continue
		}
		r.Place = 0
		if !r.Forfeit {
			ranked = append(ranked, r)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Raw < ranked[j].Raw
	})
	for i, r := range ranked {
		r.Place = i + 1
	}

	seen := false
	for i, a := range assigned {
		if !a {
			continue
		}
		seen = true
		if sw.Results[i] == nil {
			return false
		}
	}
	return seen
}

// Normalize recomputes every display string, clamping negative times. Used
// after loading a stopwatch from disk.
func (sw *Stopwatch) Normalize() {
	sw.Value.Normalize()
	for _, r := range sw.Results {
		if r != nil {
			r.Value.Normalize()
		}
	}
}
