package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/chainwatch/chainwatch/api"
	"github.com/chainwatch/chainwatch/config"
	"github.com/chainwatch/chainwatch/constant"
	"github.com/chainwatch/chainwatch/cron"
	"github.com/chainwatch/chainwatch/db"
	"github.com/chainwatch/chainwatch/metrics"
	"github.com/chainwatch/chainwatch/state"
)

// subscriptionShutdownTimeout bounds how long shutdown waits for the
// websocket sessions to close.
const subscriptionShutdownTimeout = 10 * time.Second

// daemon wires the orchestrator to its scheduler and query server.
type daemon struct {
	cfg    config.Config
	logger zerolog.Logger

	state  *state.State
	jobs   []*cron.RefreshJob
	server *api.Server
}

func newDaemon(cfg config.Config, logger zerolog.Logger) (*daemon, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dbs := db.NewChainDBManager(cfg.NodeHome, logger)
	st, err := state.New(cfg, logger, state.WithMetrics(metrics.New(registry)), state.WithDBManager(dbs))
	if err != nil {
		_ = dbs.CloseAll()
		return nil, err
	}

	d := &daemon{cfg: cfg, logger: logger, state: st}

	schedule := []struct {
		operation string
		interval  time.Duration
	}{
		{constant.OperationData, cfg.DataRefreshInterval()},
		{constant.OperationPrices, cfg.PriceRefreshInterval()},
		{constant.OperationDatabase, cfg.DatabaseRefreshInterval()},
	}
	apiJobs := make(map[string]api.Job, len(schedule))
	for _, s := range schedule {
		job := cron.NewRefreshJob(st, s.operation, s.interval, cfg.RefreshTimeout(), logger)
		d.jobs = append(d.jobs, job)
		apiJobs[s.operation] = job
	}

	d.server = api.NewServer(logger, cfg.QueryServerPort, st, apiJobs, registry)
	return d, nil
}

// run blocks until ctx is cancelled, then shuts every component down.
func (d *daemon) run(ctx context.Context) error {
	d.logger.Info().Strs("chains", d.state.Names()).Msg("🚀 Starting chainwatch daemon...")

	if err := d.server.Start(); err != nil {
		return errors.Join(err, d.state.Close())
	}

	for _, job := range d.jobs {
		if err := job.Start(ctx); err != nil {
			d.stop()
			return err
		}
	}

	subscriptions := make(chan state.Report, 1)
	go func() {
		subscriptions <- d.state.SubscribeToEvents(ctx)
	}()

	d.logger.Info().Int("port", d.cfg.QueryServerPort).Msg("✅ Initialization complete. Entering main loop...")
	<-ctx.Done()
	d.logger.Info().Msg("🛑 Shutting down chainwatch daemon...")

	select {
	case report := <-subscriptions:
		if err := report.Err(); err != nil {
			d.logger.Warn().Err(err).Msg("event subscriptions ended with errors")
		}
	case <-time.After(subscriptionShutdownTimeout):
		d.logger.Warn().Msg("event subscriptions did not stop in time")
	}

	return d.stop()
}

func (d *daemon) stop() error {
	for _, job := range d.jobs {
		job.Stop()
	}
	var errs []error
	if err := d.server.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := d.state.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
