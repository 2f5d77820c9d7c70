// Package engine implements the authoritative race clock.
//
// An Engine owns one stopwatch aggregate. Every mutation, whether it comes
// from an operator command, the 1 Hz tick or a peripheral trigger, takes
// the engine lock for its full duration, recalculation included.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/race"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/timevalue"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/wire"
)

// Master addresses the root clock in EditTime.
const Master = -1

// TickInterval is the period of the running clock.
const TickInterval = time.Second

// Engine errors.
var (
	ErrInvalidIndex = errors.New("runner index out of range")
	ErrUnassigned   = errors.New("runner slot has no assigned runner")
	ErrNoResult     = errors.New("runner has no result")
)

// RunSource supplies the active run.
type RunSource interface {
	ActiveRun() race.Run
}

// Link receives the outbound peripheral events. Send must not block.
type Link interface {
	Send(msg wire.Message)
}

// Observer receives a copy of the stopwatch after every mutation. Observers
// run with the engine lock held, in mutation order, and must not call back
// into the engine.
type Observer func(sw *stopwatch.Stopwatch)

// Config holds engine dependencies. Zero fields get defaults.
type Config struct {
	Clock  clockwork.Clock
	Runs   RunSource
	Link   Link
	Logger *zerolog.Logger
}

// Engine is the race clock.
type Engine struct {
	mu sync.Mutex

	clock  clockwork.Clock
	runs   RunSource
	link   Link
	logger zerolog.Logger

	sw        *stopwatch.Stopwatch
	lastState stopwatch.State

	// Tick source. tickGen is bumped on every arm and disarm so a tick that
	// was already in flight when the ticker was replaced is dropped.
	ticker   clockwork.Ticker
	tickStop chan struct{}
	tickGen  uint64

	observers []Observer
}

type nopLink struct{}

func (nopLink) Send(wire.Message) {}

// New creates an engine holding a fresh stopped stopwatch.
func New(cfg Config) *Engine {
	e := &Engine{
		clock: cfg.Clock,
		runs:  cfg.Runs,
		link:  cfg.Link,
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.runs == nil {
		e.runs = race.NewHolder(race.Run{})
	}
	if e.link == nil {
		e.link = nopLink{}
	}
	if cfg.Logger != nil {
		e.logger = *cfg.Logger
	} else {
		e.logger = log.With().Str("component", "engine").Logger()
	}

	e.sw = stopwatch.New(e.clock.Now())
	e.lastState = e.sw.State
	return e
}

// SetLink replaces the peripheral sink. Passing nil detaches it.
func (e *Engine) SetLink(l Link) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l == nil {
		l = nopLink{}
	}
	e.link = l
}

// OnChange registers an observer.
func (e *Engine) OnChange(fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Snapshot returns a copy of the stopwatch.
func (e *Engine) Snapshot() *stopwatch.Stopwatch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sw.Clone()
}

// State returns the current run state.
func (e *Engine) State() stopwatch.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sw.State
}

// TickArmed reports whether the 1 Hz tick source is armed.
func (e *Engine) TickArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticker != nil
}

// Restore replaces the stopwatch with a persisted one. A stopwatch that was
// running is advanced by the time elapsed since its last change and
// restarted.
func (e *Engine) Restore(sw *stopwatch.Stopwatch) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.disarmLocked()
	e.sw = sw.Clone()
	e.sw.Normalize()
	e.lastState = e.sw.State

	if e.sw.State == stopwatch.Running {
		missed := e.catchUpLocked()
		e.logger.Info().
			Int("raw", e.sw.Raw).
			Int("missed_seconds", missed).
			Msg("resuming running stopwatch")
		e.startLocked()
	}
	e.commitLocked()
}

// Start starts the clock. Without force only a stopped clock is started; a
// finished clock is restarted by resuming a runner.
func (e *Engine) Start(force bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !force && e.sw.State != stopwatch.Stopped {
		return
	}
	e.startLocked()
	e.commitLocked()
}

// Stop disarms the tick. A running clock becomes stopped; a finished one
// stays finished.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.commitLocked()
}

// Reset stops the clock, zeroes it and clears every result. The peripheral
// is told before any local state changes.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.link.Send(wire.Reset())

	e.disarmLocked()
	e.sw.State = stopwatch.Stopped
	e.sw.Set(0, e.clock.Now())
	e.sw.ClearAll()
	e.commitLocked()
}

// Tick advances the root clock by one second.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked()
}

// CompleteRunner records a finish for one slot.
func (e *Engine) CompleteRunner(index int, forfeit bool) error {
	return e.CompleteRunners([]int{index}, forfeit)
}

// CompleteRunners records a finish for every listed slot as one mutation.
// Slots must be in range and assigned; otherwise nothing changes. A slot
// that already has a result keeps its time and only has its forfeit flag
// replaced.
func (e *Engine) CompleteRunners(indices []int, forfeit bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed, err := e.completeLocked(indices, forfeit)
	if changed {
		e.commitLocked()
	}
	return err
}

func (e *Engine) completeLocked(indices []int, forfeit bool) (bool, error) {
	run := e.runs.ActiveRun()
	assigned := run.Assigned()
	for _, i := range indices {
		if err := checkIndex(i); err != nil {
			return false, err
		}
		if !assigned[i] {
			return false, fmt.Errorf("%w: %d", ErrUnassigned, i)
		}
	}
	if len(indices) == 0 {
		return false, nil
	}

	now := e.clock.Now()
	for _, i := range indices {
		e.sw.Complete(i, forfeit, now)
		if !forfeit {
			e.link.Send(wire.RunnerFinished())
		}
		e.logger.Info().Int("index", i).Bool("forfeit", forfeit).Int("raw", e.sw.Results[i].Raw).Msg("runner completed")
	}
	e.recalcLocked(assigned)
	return true, nil
}

// ResumeRunner clears one slot's result.
func (e *Engine) ResumeRunner(index int) error {
	return e.ResumeRunners([]int{index})
}

// ResumeRunners clears the listed slots' results as one mutation. Slots
// without a result are left alone. When the stopwatch was finished, the
// root clock first catches up with the wall-clock time spent finished and
// is then restarted.
func (e *Engine) ResumeRunners(indices []int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed, err := e.resumeLocked(indices)
	if changed {
		e.commitLocked()
	}
	return err
}

func (e *Engine) resumeLocked(indices []int) (bool, error) {
	for _, i := range indices {
		if err := checkIndex(i); err != nil {
			return false, err
		}
	}

	wasFinished := e.sw.State == stopwatch.Finished
	cleared := false
	for _, i := range indices {
		if e.sw.Clear(i) {
			cleared = true
			e.logger.Info().Int("index", i).Msg("runner resumed")
		}
	}
	if !cleared {
		return false, nil
	}

	done := e.recalcLocked(e.runs.ActiveRun().Assigned())

	if wasFinished && !done {
		missed := e.catchUpLocked()
		e.logger.Info().Int("raw", e.sw.Raw).Int("missed_seconds", missed).Msg("restarting finished stopwatch")
		e.startLocked()
	}
	return true, nil
}

// Toggle is the start/finish button. While running it finishes every
// assigned runner; otherwise it resumes them all and starts a stopped
// clock. The state is read and acted on under one lock.
func (e *Engine) Toggle() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var slots []int
	for i, a := range e.runs.ActiveRun().Assigned() {
		if a {
			slots = append(slots, i)
		}
	}

	var (
		changed bool
		err     error
	)
	if e.sw.State == stopwatch.Running {
		changed, err = e.completeLocked(slots, false)
	} else {
		if len(slots) > 0 {
			changed, err = e.resumeLocked(slots)
		}
		if err == nil && e.sw.State == stopwatch.Stopped {
			e.startLocked()
			changed = true
		}
	}
	if changed {
		e.commitLocked()
	}
	return err
}

// EditTime sets a result's time, or the root clock's when index is Master.
// A malformed time string leaves everything untouched and is not an error.
// When exactly one runner is assigned, an edited result is mirrored onto
// the root clock. Editing the root clock while running is allowed; ticking
// continues from the new value.
func (e *Engine) EditTime(index int, newTime string) error {
	seconds, err := timevalue.Parse(newTime)
	if err != nil {
		e.logger.Debug().Int("index", index).Str("new_time", newTime).Err(err).Msg("ignoring time edit")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if index == Master {
		e.sw.Set(seconds, now)
		e.commitLocked()
		return nil
	}

	if err := checkIndex(index); err != nil {
		return err
	}
	r := e.sw.Results[index]
	if r == nil {
		return fmt.Errorf("%w: %d", ErrNoResult, index)
	}

	r.Set(seconds, now)
	run := e.runs.ActiveRun()
	e.recalcLocked(run.Assigned())
	if run.AssignedCount() == 1 {
		e.sw.Set(seconds, now)
	}
	e.commitLocked()
	return nil
}

// MirrorState resends the current state to the peripheral, for example
// after a new link has been established.
func (e *Engine) MirrorState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.link.Send(wire.StateChange(e.sw.State, e.sw.Results))
	e.lastState = e.sw.State
}

// Close disarms the tick source.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disarmLocked()
}

func checkIndex(i int) error {
	if i < 0 || i >= stopwatch.Slots {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	return nil
}

func (e *Engine) startLocked() {
	e.armLocked()
	e.sw.State = stopwatch.Running
}

func (e *Engine) stopLocked() {
	e.disarmLocked()
	if e.sw.State == stopwatch.Running {
		e.sw.State = stopwatch.Stopped
	}
}

func (e *Engine) tickLocked() {
	e.sw.Increment(e.clock.Now())
	e.link.Send(wire.Tick(e.sw.Raw))
	e.commitLocked()
}

// recalcLocked reassigns places and finishes the stopwatch once every
// assigned runner has a result.
func (e *Engine) recalcLocked(assigned [stopwatch.Slots]bool) bool {
	if !e.sw.Recalculate(assigned) {
		return false
	}
	e.stopLocked()
	e.sw.State = stopwatch.Finished
	return true
}

// catchUpLocked adds the whole seconds elapsed since the root timestamp.
func (e *Engine) catchUpLocked() int {
	now := e.clock.Now()
	missed := int(math.Round(float64(now.Sub(e.sw.Timestamp)) / float64(time.Second)))
	if missed < 0 {
		missed = 0
	}
	e.sw.Set(e.sw.Raw+missed, now)
	return missed
}

// commitLocked mirrors state transitions to the peripheral and publishes
// the stopwatch to observers.
func (e *Engine) commitLocked() {
	if e.sw.State != e.lastState {
		e.lastState = e.sw.State
		e.link.Send(wire.StateChange(e.sw.State, e.sw.Results))
	}
	if len(e.observers) == 0 {
		return
	}
	snap := e.sw.Clone()
	for _, fn := range e.observers {
		fn(snap)
	}
}
