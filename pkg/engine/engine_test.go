package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/race"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/timevalue"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/wire"
)

var t0 = time.Date(2017, 1, 8, 12, 0, 0, 0, time.UTC)

type recordingLink struct {
	mu   sync.Mutex
	msgs []wire.Message
}

func (l *recordingLink) Send(m wire.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m)
}

func (l *recordingLink) events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = m.Event
	}
	return out
}

func (l *recordingLink) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
}

type fixture struct {
	clock  *clockwork.FakeClock
	runs   *race.Holder
	link   *recordingLink
	engine *Engine
}

func newFixture(t *testing.T, runners int, coop bool) *fixture {
	t.Helper()

	run := race.Run{Name: "test run", Coop: coop}
	for i := 0; i < runners; i++ {
		run.Runners = append(run.Runners, &race.Runner{Name: string(rune('a' + i))})
	}

	nop := zerolog.Nop()
	f := &fixture{
		clock: clockwork.NewFakeClockAt(t0),
		runs:  race.NewHolder(run),
		link:  &recordingLink{},
	}
	f.engine = New(Config{Clock: f.clock, Runs: f.runs, Link: f.link, Logger: &nop})
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) raw() int {
	return f.engine.Snapshot().Raw
}

func TestTickIncrementsByOne(t *testing.T) {
	f := newFixture(t, 1, false)

	for want := 1; want <= 61; want++ {
		f.engine.Tick()
		sw := f.engine.Snapshot()
		require.Equal(t, want, sw.Raw)
		require.Equal(t, timevalue.Format(want), sw.Formatted)
	}
	assert.Equal(t, "1:01", f.engine.Snapshot().Formatted)

	f.link.mu.Lock()
	last := f.link.msgs[len(f.link.msgs)-1]
	f.link.mu.Unlock()
	assert.Equal(t, wire.Tick(61), last)
}

func TestStartArmsTicker(t *testing.T) {
	f := newFixture(t, 1, false)

	f.engine.Start(false)
	assert.Equal(t, stopwatch.Running, f.engine.State())
	assert.True(t, f.engine.TickArmed())

	for want := 1; want <= 3; want++ {
		f.clock.Advance(TickInterval)
		require.Eventually(t, func() bool { return f.raw() == want }, time.Second, time.Millisecond)
	}

	// Starting again without force neither re-arms nor emits.
	f.link.clear()
	f.engine.Start(false)
	assert.Empty(t, f.link.events())

	f.engine.Stop()
	assert.Equal(t, stopwatch.Stopped, f.engine.State())
	assert.False(t, f.engine.TickArmed())

	f.clock.Advance(5 * TickInterval)
	assert.Never(t, func() bool { return f.raw() != 3 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestForceStartReplacesTicker(t *testing.T) {
	f := newFixture(t, 1, false)

	f.engine.Start(false)
	f.engine.Start(true)
	f.engine.Start(true)

	f.clock.Advance(TickInterval)
	require.Eventually(t, func() bool { return f.raw() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return f.raw() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestStateChangesAreMirrored(t *testing.T) {
	f := newFixture(t, 1, false)

	f.engine.Start(false)
	f.engine.Stop()
	f.engine.Stop()

	assert.Equal(t, []string{"running", "stopped"}, f.link.events())
	assert.Equal(t, wire.StateChange(stopwatch.Running, [4]*stopwatch.RunnerResult{}), f.link.msgs[0])
}

func TestTwoRunnerRace(t *testing.T) {
	f := newFixture(t, 2, false)

	f.engine.Start(false)
	require.NoError(t, f.engine.EditTime(Master, "1:30"))
	require.NoError(t, f.engine.CompleteRunner(0, false))
	assert.Equal(t, stopwatch.Running, f.engine.State())

	require.NoError(t, f.engine.EditTime(Master, "2:00"))
	require.NoError(t, f.engine.CompleteRunner(1, false))

	sw := f.engine.Snapshot()
	require.NotNil(t, sw.Results[0])
	require.NotNil(t, sw.Results[1])
	assert.Equal(t, 90, sw.Results[0].Raw)
	assert.Equal(t, 120, sw.Results[1].Raw)
	assert.Equal(t, 1, sw.Results[0].Place)
	assert.Equal(t, 2, sw.Results[1].Place)
	assert.Equal(t, stopwatch.Finished, sw.State)
	assert.False(t, f.engine.TickArmed())

	assert.Equal(t, []string{"running", "runnerFinished", "runnerFinished", "finished"}, f.link.events())
}

func TestForfeitDoesNotNotify(t *testing.T) {
	f := newFixture(t, 2, false)

	require.NoError(t, f.engine.CompleteRunner(0, true))
	assert.Empty(t, f.link.events())

	sw := f.engine.Snapshot()
	assert.True(t, sw.Results[0].Forfeit)
	assert.Equal(t, 0, sw.Results[0].Place)

	// Un-forfeiting keeps the original time.
	require.NoError(t, f.engine.EditTime(Master, "5:00"))
	require.NoError(t, f.engine.CompleteRunner(0, false))
	sw = f.engine.Snapshot()
	assert.Equal(t, 0, sw.Results[0].Raw)
	assert.Equal(t, 1, sw.Results[0].Place)
}

func TestCompleteRunnersBatch(t *testing.T) {
	f := newFixture(t, 2, true)

	var snaps int
	f.engine.OnChange(func(*stopwatch.Stopwatch) { snaps++ })

	require.NoError(t, f.engine.CompleteRunners([]int{0, 1}, false))
	assert.Equal(t, 1, snaps)

	sw := f.engine.Snapshot()
	assert.Equal(t, stopwatch.Finished, sw.State)
	assert.False(t, sw.Results[0].Forfeit)
	assert.False(t, sw.Results[1].Forfeit)
}

func TestCompleteRejectsBadSlots(t *testing.T) {
	f := newFixture(t, 2, false)

	err := f.engine.CompleteRunner(4, false)
	assert.True(t, errors.Is(err, ErrInvalidIndex))

	err = f.engine.CompleteRunner(-1, false)
	assert.True(t, errors.Is(err, ErrInvalidIndex))

	err = f.engine.CompleteRunners([]int{0, 3}, false)
	assert.True(t, errors.Is(err, ErrUnassigned))

	sw := f.engine.Snapshot()
	assert.Equal(t, [4]*stopwatch.RunnerResult{}, sw.Results)
	assert.Empty(t, f.link.events())
}

func TestResumeCatchesUp(t *testing.T) {
	f := newFixture(t, 2, false)

	f.engine.Start(false)
	require.NoError(t, f.engine.EditTime(Master, "2:00"))
	require.NoError(t, f.engine.CompleteRunners([]int{0, 1}, false))
	require.Equal(t, stopwatch.Finished, f.engine.State())

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.engine.ResumeRunner(1))

	sw := f.engine.Snapshot()
	assert.Equal(t, 130, sw.Raw)
	assert.Equal(t, stopwatch.Running, sw.State)
	assert.Nil(t, sw.Results[1])
	assert.Equal(t, 1, sw.Results[0].Place)
	assert.True(t, f.engine.TickArmed())

	// A second resume while running does not catch up again.
	f.clock.Advance(400 * time.Millisecond)
	require.NoError(t, f.engine.ResumeRunner(0))
	assert.Equal(t, 130, f.raw())
}

func TestResumeCatchUpRounds(t *testing.T) {
	f := newFixture(t, 1, false)

	require.NoError(t, f.engine.CompleteRunner(0, false))
	require.Equal(t, stopwatch.Finished, f.engine.State())

	f.clock.Advance(2500 * time.Millisecond)
	require.NoError(t, f.engine.ResumeRunner(0))
	assert.Equal(t, 3, f.raw())
}

func TestResumeWithoutResultIsNoop(t *testing.T) {
	f := newFixture(t, 2, false)

	var snaps int
	f.engine.OnChange(func(*stopwatch.Stopwatch) { snaps++ })

	require.NoError(t, f.engine.ResumeRunner(1))
	assert.Equal(t, 0, snaps)

	assert.True(t, errors.Is(f.engine.ResumeRunner(7), ErrInvalidIndex))
}

func TestStartWhileFinishedIsNoop(t *testing.T) {
	f := newFixture(t, 1, false)

	require.NoError(t, f.engine.CompleteRunner(0, false))
	f.engine.Start(false)
	assert.Equal(t, stopwatch.Finished, f.engine.State())
	assert.False(t, f.engine.TickArmed())

	f.engine.Stop()
	assert.Equal(t, stopwatch.Finished, f.engine.State())
}

func TestToggle(t *testing.T) {
	f := newFixture(t, 2, false)

	var snaps int
	f.engine.OnChange(func(*stopwatch.Stopwatch) { snaps++ })

	require.NoError(t, f.engine.Toggle())
	assert.Equal(t, stopwatch.Running, f.engine.State())
	assert.Equal(t, 1, snaps)

	f.engine.Tick()
	require.NoError(t, f.engine.Toggle())
	sw := f.engine.Snapshot()
	assert.Equal(t, stopwatch.Finished, sw.State)
	require.NotNil(t, sw.Results[0])
	require.NotNil(t, sw.Results[1])
	assert.Equal(t, 1, sw.Results[0].Raw)
	assert.False(t, f.engine.TickArmed())

	f.clock.Advance(4 * time.Second)
	snaps = 0
	require.NoError(t, f.engine.Toggle())
	sw = f.engine.Snapshot()
	assert.Equal(t, stopwatch.Running, sw.State)
	assert.Equal(t, 5, sw.Raw)
	assert.Nil(t, sw.Results[0])
	assert.Nil(t, sw.Results[1])
	assert.Equal(t, 1, snaps)
}

func TestToggleResumesPartialResults(t *testing.T) {
	f := newFixture(t, 2, false)

	f.engine.Start(false)
	require.NoError(t, f.engine.CompleteRunner(0, false))
	f.engine.Stop()

	require.NoError(t, f.engine.Toggle())
	sw := f.engine.Snapshot()
	assert.Equal(t, stopwatch.Running, sw.State)
	assert.Nil(t, sw.Results[0])
}

func TestToggleWithoutRunners(t *testing.T) {
	f := newFixture(t, 0, false)

	require.NoError(t, f.engine.Toggle())
	assert.Equal(t, stopwatch.Running, f.engine.State())

	require.NoError(t, f.engine.Toggle())
	assert.Equal(t, stopwatch.Running, f.engine.State())
	assert.Equal(t, [4]*stopwatch.RunnerResult{}, f.engine.Snapshot().Results)
}

func TestConcurrentTogglesAlternate(t *testing.T) {
	f := newFixture(t, 2, false)
	f.engine.Start(false)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.engine.Toggle())
		}()
	}
	wg.Wait()

	// Every toggle observed the state left by the previous one.
	sw := f.engine.Snapshot()
	assert.Equal(t, stopwatch.Running, sw.State)
	assert.Nil(t, sw.Results[0])
	assert.Nil(t, sw.Results[1])
}

func TestEditTime(t *testing.T) {
	t.Run("invalid string leaves state unchanged", func(t *testing.T) {
		f := newFixture(t, 2, false)
		require.NoError(t, f.engine.EditTime(Master, "1:00"))
		before := f.engine.Snapshot()

		require.NoError(t, f.engine.EditTime(Master, "bogus"))
		require.NoError(t, f.engine.EditTime(0, ""))

		assert.Equal(t, before, f.engine.Snapshot())
	})

	t.Run("result edit recalculates places", func(t *testing.T) {
		f := newFixture(t, 3, false)
		require.NoError(t, f.engine.EditTime(Master, "1:00"))
		require.NoError(t, f.engine.CompleteRunner(0, false))
		require.NoError(t, f.engine.EditTime(Master, "2:00"))
		require.NoError(t, f.engine.CompleteRunner(1, false))

		require.NoError(t, f.engine.EditTime(0, "3:00"))

		sw := f.engine.Snapshot()
		assert.Equal(t, 180, sw.Results[0].Raw)
		assert.Equal(t, 2, sw.Results[0].Place)
		assert.Equal(t, 1, sw.Results[1].Place)
		assert.Equal(t, 120, sw.Raw, "multi-runner edits do not touch the root clock")
	})

	t.Run("single runner edit mirrors root", func(t *testing.T) {
		f := newFixture(t, 1, false)
		require.NoError(t, f.engine.CompleteRunner(0, false))

		require.NoError(t, f.engine.EditTime(0, "1:02:03"))

		sw := f.engine.Snapshot()
		assert.Equal(t, 3723, sw.Results[0].Raw)
		assert.Equal(t, 3723, sw.Raw)
		assert.Equal(t, "1:02:03", sw.Formatted)
	})

	t.Run("slot without result", func(t *testing.T) {
		f := newFixture(t, 2, false)
		assert.True(t, errors.Is(f.engine.EditTime(1, "1:00"), ErrNoResult))
		assert.True(t, errors.Is(f.engine.EditTime(9, "1:00"), ErrInvalidIndex))
	})

	t.Run("master while running keeps ticking", func(t *testing.T) {
		f := newFixture(t, 1, false)
		f.engine.Start(false)
		require.NoError(t, f.engine.EditTime(Master, "10:00"))
		assert.True(t, f.engine.TickArmed())

		f.clock.Advance(TickInterval)
		require.Eventually(t, func() bool { return f.raw() == 601 }, time.Second, time.Millisecond)
	})
}

func TestReset(t *testing.T) {
	f := newFixture(t, 2, false)

	f.engine.Start(false)
	require.NoError(t, f.engine.EditTime(Master, "3:00"))
	require.NoError(t, f.engine.CompleteRunner(0, false))
	f.link.clear()

	f.engine.Reset()

	assert.Equal(t, []string{"reset", "stopped"}, f.link.events())
	sw := f.engine.Snapshot()
	assert.Equal(t, stopwatch.Stopped, sw.State)
	assert.Equal(t, 0, sw.Raw)
	assert.Equal(t, "0:00", sw.Formatted)
	assert.Equal(t, [4]*stopwatch.RunnerResult{}, sw.Results)
	assert.False(t, f.engine.TickArmed())
}

func TestRestoreRunning(t *testing.T) {
	f := newFixture(t, 1, false)

	persisted := stopwatch.New(t0)
	persisted.State = stopwatch.Running
	persisted.Set(100, t0)

	f.clock.Advance(5 * time.Second)
	f.engine.Restore(persisted)

	sw := f.engine.Snapshot()
	assert.Equal(t, 105, sw.Raw)
	assert.Equal(t, stopwatch.Running, sw.State)
	assert.True(t, f.engine.TickArmed())
	assert.Equal(t, 100, persisted.Raw, "restore must not alias the input")
}

func TestRestoreStopped(t *testing.T) {
	f := newFixture(t, 1, false)

	persisted := stopwatch.New(t0)
	persisted.Set(100, t0)
	persisted.Formatted = "stale"

	f.clock.Advance(time.Minute)
	f.engine.Restore(persisted)

	sw := f.engine.Snapshot()
	assert.Equal(t, 100, sw.Raw)
	assert.Equal(t, "1:40", sw.Formatted)
	assert.False(t, f.engine.TickArmed())
}

func TestObserversSeeCopies(t *testing.T) {
	f := newFixture(t, 1, false)

	var got []*stopwatch.Stopwatch
	f.engine.OnChange(func(sw *stopwatch.Stopwatch) { got = append(got, sw) })

	f.engine.Tick()
	f.engine.Tick()

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Raw)
	assert.Equal(t, 2, got[1].Raw)
}

func TestMirrorState(t *testing.T) {
	f := newFixture(t, 1, false)
	f.engine.MirrorState()
	assert.Equal(t, []string{"stopped"}, f.link.events())

	f.engine.SetLink(nil)
	f.engine.Start(false)
	assert.Equal(t, []string{"stopped"}, f.link.events())
}
