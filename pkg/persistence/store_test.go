package persistence

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/engine"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/race"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

var t0 = time.Date(2017, 1, 8, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*StopwatchStore, afero.Fs, *clockwork.FakeClock) {
	t.Helper()
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(t0)
	return NewStopwatchStore(fs, "data/stopwatch.json", clock), fs, clock
}

func TestStopwatchStore(t *testing.T) {
	t.Run("LoadMissing", func(t *testing.T) {
		store, _, _ := newStore(t)
		sw, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, sw)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		store, fs, _ := newStore(t)

		sw := stopwatch.New(t0)
		sw.Set(125, t0)
		sw.State = stopwatch.Finished
		sw.Complete(1, false, t0)
		sw.Recalculate([stopwatch.Slots]bool{false, true})

		require.NoError(t, store.Save(sw))

		exists, err := afero.Exists(fs, "data/stopwatch.json")
		require.NoError(t, err)
		assert.True(t, exists)
		tmp, err := afero.Exists(fs, "data/stopwatch.json.tmp")
		require.NoError(t, err)
		assert.False(t, tmp)

		got, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, got)
		if diff := cmp.Diff(sw, got); diff != "" {
			t.Errorf("stopwatch mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("DocumentShape", func(t *testing.T) {
		store, fs, _ := newStore(t)
		require.NoError(t, store.Save(stopwatch.New(t0)))

		data, err := afero.ReadFile(fs, store.Path())
		require.NoError(t, err)
		assert.Contains(t, string(data), `"version": 1`)
		assert.Contains(t, string(data), `"state": "stopped"`)
		assert.Contains(t, string(data), `"formatted": "0:00"`)
	})

	t.Run("Corrupt", func(t *testing.T) {
		store, fs, _ := newStore(t)
		require.NoError(t, afero.WriteFile(fs, store.Path(), []byte("{not json"), 0o644))

		sw, err := store.Load()
		assert.Error(t, err)
		assert.Nil(t, sw)
	})

	t.Run("FutureVersion", func(t *testing.T) {
		store, fs, _ := newStore(t)
		require.NoError(t, afero.WriteFile(fs, store.Path(), []byte(`{"version":9,"stopwatch":{}}`), 0o644))

		_, err := store.Load()
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("Clear", func(t *testing.T) {
		store, _, _ := newStore(t)
		require.NoError(t, store.Save(stopwatch.New(t0)))
		require.NoError(t, store.Clear())
		require.NoError(t, store.Clear())

		sw, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, sw)
	})
}

func TestRestoreRunningStopwatchCatchesUp(t *testing.T) {
	store, _, clock := newStore(t)
	nop := zerolog.Nop()
	runs := race.NewHolder(race.Run{Runners: []*race.Runner{{Name: "a"}}})

	first := engine.New(engine.Config{Clock: clock, Runs: runs, Logger: &nop})
	first.Start(false)
	for i := 0; i < 60; i++ {
		first.Tick()
	}
	require.NoError(t, store.Save(first.Snapshot()))
	first.Close()

	// Process is down for five seconds.
	clock.Advance(5 * time.Second)

	sw, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, sw)
	assert.Equal(t, stopwatch.Running, sw.State)

	second := engine.New(engine.Config{Clock: clock, Runs: runs, Logger: &nop})
	t.Cleanup(second.Close)
	second.Restore(sw)

	got := second.Snapshot()
	assert.Equal(t, stopwatch.Running, got.State)
	assert.Equal(t, 65, got.Raw)
	assert.Equal(t, "1:05", got.Formatted)
	assert.True(t, second.TickArmed())
}
