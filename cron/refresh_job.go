package cron

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainwatch/chainwatch/state"
)

// Runner dispatches one fan-out round by operation name.
type Runner interface {
	Run(ctx context.Context, operation string) (state.Report, error)
}

// JobStatus is the bookkeeping of a RefreshJob, served by the query server.
// Durations are encoded as interval_seconds and last_took_ms.
type JobStatus struct {
	Operation  string        `json:"operation"`
	Interval   time.Duration `json:"-"`
	Runs       int           `json:"runs"`
	LastRunAt  time.Time     `json:"last_run_at"`
	LastTook   time.Duration `json:"-"`
	LastFailed []string      `json:"last_failed"`
}

func (s JobStatus) MarshalJSON() ([]byte, error) {
	type fields JobStatus
	return json.Marshal(struct {
		fields
		IntervalSeconds float64 `json:"interval_seconds"`
		LastTookMS      int64   `json:"last_took_ms"`
	}{
		fields:          fields(s),
		IntervalSeconds: s.Interval.Seconds(),
		LastTookMS:      s.LastTook.Milliseconds(),
	})
}

// RefreshJob runs one fan-out operation on a fixed interval, plus once at
// start and whenever ForceRun is called.
type RefreshJob struct {
	runner        Runner
	operation     string
	interval      time.Duration
	perRunTimeout time.Duration
	logger        zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	forceCh chan struct{}
	wg      sync.WaitGroup

	statusMu sync.RWMutex
	status   JobStatus
}

func NewRefreshJob(runner Runner, operation string, interval, perRunTimeout time.Duration, logger zerolog.Logger) *RefreshJob {
	if interval <= 0 {
		interval = time.Minute
	}
	if perRunTimeout <= 0 {
		perRunTimeout = 2 * time.Minute
	}
	return &RefreshJob{
		runner:        runner,
		operation:     operation,
		interval:      interval,
		perRunTimeout: perRunTimeout,
		logger:        logger.With().Str("component", "refresh_cron").Str("operation", operation).Logger(),
		status:        JobStatus{Operation: operation, Interval: interval},
	}
}

// Start launches the background loop and returns immediately (non-blocking).
// Safe to call multiple times; subsequent calls are no-ops.
func (j *RefreshJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	if j.runner == nil {
		return errors.New("cron: runner must be non-nil")
	}

	j.stopCh = make(chan struct{})
	j.forceCh = make(chan struct{}, 1) // buffered so ForceRun won't block
	j.running = true
	j.wg.Add(1)

	go j.run(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
// Safe to call multiple times.
func (j *RefreshJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.running = false
	j.mu.Unlock()
	j.wg.Wait()
}

// ForceRun requests an immediate round. Requests made while one is already
// pending are coalesced.
func (j *RefreshJob) ForceRun() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	select {
	case j.forceCh <- struct{}{}:
	default:
	}
}

func (j *RefreshJob) Status() JobStatus {
	j.statusMu.RLock()
	defer j.statusMu.RUnlock()
	status := j.status
	status.LastFailed = append([]string(nil), j.status.LastFailed...)
	return status
}

func (j *RefreshJob) run(parent context.Context) {
	defer j.wg.Done()

	j.runOnce(parent)

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-parent.Done():
			j.logger.Info().Msg("refresh cron: context canceled; stopping")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("refresh cron: stop requested; stopping")
			return
		case <-t.C:
			j.runOnce(parent)
		case <-j.forceCh:
			j.runOnce(parent)
		}
	}
}

func (j *RefreshJob) runOnce(parent context.Context) {
	timeout := j.perRunTimeout
	if dl, ok := parent.Deadline(); ok {
		if remain := time.Until(dl); remain > 0 && remain < timeout {
			timeout = remain
		}
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	report, err := j.runner.Run(ctx, j.operation)
	took := time.Since(start)
	if err != nil {
		j.logger.Error().Err(err).Msg("refresh failed")
		return
	}

	j.statusMu.Lock()
	j.status.Runs++
	j.status.LastRunAt = start
	j.status.LastTook = took
	j.status.LastFailed = report.Failed()
	j.statusMu.Unlock()

	if failed := report.Failed(); len(failed) > 0 {
		j.logger.Warn().Strs("failed", failed).Dur("took", took).Msg("refresh completed with failures")
		return
	}
	j.logger.Debug().Int("chains", len(report.Results)).Dur("took", took).Msg("refresh completed")
}
