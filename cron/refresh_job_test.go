package cron

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/chainwatch/state"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	err      error
	failed   string
	deadline bool
}

func (f *fakeRunner) Run(ctx context.Context, operation string) (state.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, operation)
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return state.Report{}, f.err
	}
	report := state.Report{Operation: operation, Results: []state.Result{{Chain: "axelar"}}}
	if f.failed != "" {
		report.Results = append(report.Results, state.Result{Chain: f.failed, Err: errors.New("down")})
	}
	return report, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRefreshJob(t *testing.T) {
	t.Run("runs at start and on every tick", func(t *testing.T) {
		runner := &fakeRunner{}
		job := NewRefreshJob(runner, "data", 20*time.Millisecond, time.Second, zerolog.Nop())

		require.NoError(t, job.Start(context.Background()))
		defer job.Stop()

		require.Eventually(t, func() bool { return runner.count() >= 3 }, time.Second, 5*time.Millisecond)

		runner.mu.Lock()
		assert.Equal(t, "data", runner.calls[0])
		assert.True(t, runner.deadline, "each run is bounded")
		runner.mu.Unlock()

		status := job.Status()
		assert.Equal(t, "data", status.Operation)
		assert.GreaterOrEqual(t, status.Runs, 1)
		assert.False(t, status.LastRunAt.IsZero())
		assert.Empty(t, status.LastFailed)
	})

	t.Run("force run", func(t *testing.T) {
		runner := &fakeRunner{failed: "evmos"}
		job := NewRefreshJob(runner, "prices", time.Hour, time.Second, zerolog.Nop())

		require.NoError(t, job.Start(context.Background()))
		defer job.Stop()
		require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

		job.ForceRun()
		require.Eventually(t, func() bool { return runner.count() == 2 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"evmos"}, job.Status().LastFailed)
	})

	t.Run("runner errors do not count as runs", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("unknown operation")}
		job := NewRefreshJob(runner, "bogus", time.Hour, time.Second, zerolog.Nop())

		require.NoError(t, job.Start(context.Background()))
		require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
		job.Stop()
		assert.Zero(t, job.Status().Runs)
	})

	t.Run("stops on context cancel", func(t *testing.T) {
		runner := &fakeRunner{}
		job := NewRefreshJob(runner, "database", 10*time.Millisecond, time.Second, zerolog.Nop())

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, job.Start(ctx))
		require.Eventually(t, func() bool { return runner.count() >= 1 }, time.Second, 5*time.Millisecond)
		cancel()

		done := make(chan struct{})
		go func() {
			job.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job did not stop")
		}
		job.Stop()
	})

	t.Run("start and stop are idempotent", func(t *testing.T) {
		job := NewRefreshJob(&fakeRunner{}, "data", time.Hour, time.Second, zerolog.Nop())
		require.NoError(t, job.Start(context.Background()))
		require.NoError(t, job.Start(context.Background()))
		job.Stop()
		job.Stop()
		job.ForceRun()
	})

	t.Run("nil runner", func(t *testing.T) {
		job := NewRefreshJob(nil, "data", time.Hour, time.Second, zerolog.Nop())
		require.Error(t, job.Start(context.Background()))
	})

	t.Run("defaults", func(t *testing.T) {
		job := NewRefreshJob(&fakeRunner{}, "data", 0, 0, zerolog.Nop())
		assert.Equal(t, time.Minute, job.interval)
		assert.Equal(t, 2*time.Minute, job.perRunTimeout)
		assert.Equal(t, time.Minute, job.Status().Interval)
	})
}

func TestJobStatusJSON(t *testing.T) {
	status := JobStatus{
		Operation:  "prices",
		Interval:   5 * time.Minute,
		Runs:       2,
		LastRunAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		LastTook:   1500 * time.Millisecond,
		LastFailed: []string{"evmos"},
	}

	raw, err := json.Marshal(status)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, map[string]interface{}{
		"operation":        "prices",
		"runs":             float64(2),
		"last_run_at":      "2024-03-01T10:00:00Z",
		"last_failed":      []interface{}{"evmos"},
		"interval_seconds": float64(300),
		"last_took_ms":     float64(1500),
	}, out)
}
