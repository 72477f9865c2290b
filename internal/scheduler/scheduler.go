// Package scheduler drives the grooming pipeline as Go tickers. A reconcile
// tick fetches every resort's feed, folds it into the day's report, and
// delivers whatever the notification gate releases; an audit tick sweeps for
// resorts whose day went unnotified and raises operational alerts.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bluemoonski/bluemoon-data/internal/fetch"
	"github.com/bluemoonski/bluemoon-data/internal/notify"
	"github.com/bluemoonski/bluemoon-data/internal/observability"
	"github.com/bluemoonski/bluemoon-data/internal/report"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Config controls scheduler intervals and concurrency. A zero interval
// disables that ticker.
type Config struct {
	ReconcileEvery time.Duration
	AuditEvery     time.Duration
	Workers        int
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileEvery: 15 * time.Minute,
		AuditEvery:     5 * time.Minute,
		Workers:        4,
	}
}

// Scheduler owns the periodic reconcile and audit work.
type Scheduler struct {
	store     store.Store
	engine    *report.Engine
	fetcher   fetch.Fetcher
	publisher notify.Publisher
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
	workers   int
}

// New assembles a Scheduler from its collaborators.
func New(
	st store.Store,
	engine *report.Engine,
	fetcher fetch.Fetcher,
	publisher notify.Publisher,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	workers int,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		store:     st,
		engine:    engine,
		fetcher:   fetcher,
		publisher: publisher,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		workers:   workers,
	}
}

// Start launches the configured tickers. Blocks until ctx is cancelled.
// Intended to be called with `go`.
func (s *Scheduler) Start(ctx context.Context, cfg Config) {
	s.logger.Info("Scheduler started",
		"reconcile", cfg.ReconcileEvery,
		"audit", cfg.AuditEvery,
		"workers", cfg.Workers)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	tickers := make([]clockwork.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.ReconcileEvery > 0 {
		t := s.clock.NewTicker(cfg.ReconcileEvery)
		tickers = append(tickers, t)
		go runLoop(ctx, t.Chan(), func() { s.RunCycles(ctx) })
	}

	if cfg.AuditEvery > 0 {
		t := s.clock.NewTicker(cfg.AuditEvery)
		tickers = append(tickers, t)
		go runLoop(ctx, t.Chan(), func() { s.RunSweep(ctx) })
	}

	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// RunSweep audits all resorts for unnotified days and raises an alert for
// each. Alerts are operational signals, so they publish regardless of the
// resort's subscriber count; the alert row is recorded only after delivery
// succeeds, which keeps repeated sweeps retrying failed ones.
func (s *Scheduler) RunSweep(ctx context.Context) SweepResult {
	start := s.clock.Now()
	var res SweepResult

	flagged, err := s.engine.Sweep(ctx, start)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		res.Duration = s.clock.Since(start)
		return res
	}
	res.Flagged = len(flagged)

	for _, notable := range flagged {
		resort, err := s.store.GetResort(ctx, notable.ResortID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("resort %d: %v", notable.ResortID, err))
			continue
		}

		deliveryID, err := s.publisher.Publish(ctx, notify.AlertMessage(resort, notable, start))
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: publish alert: %v", resort.Slug, err))
			continue
		}
		if _, err := s.store.CreateAlert(ctx, notable.ID, deliveryID, start); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: record alert: %v", resort.Slug, err))
			continue
		}

		res.AlertsRaised++
		s.metrics.AlertsRaised.Inc()
		s.logger.Warn("Unnotified day flagged",
			"resort", resort.Slug,
			"date", notable.Date.Format(time.DateOnly),
			"delivery_id", deliveryID)
	}

	res.Duration = s.clock.Since(start)
	if res.Flagged > 0 || len(res.Errors) > 0 {
		s.logger.Info("Audit sweep complete", "summary", res.Summary())
	}
	return res
}
