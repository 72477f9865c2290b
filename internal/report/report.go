// Package report implements the rare-run detection and notification
// eligibility engine: reconciling fetched grooming reports into daily report
// state, computing the rarely-groomed subset over a trailing window, gating
// subscriber notifications, and auditing for silently missed notifications.
//
// Pipeline: fetched runs → Reconcile (idempotent merge + stale-day
// suppression) → rarity recompute (notable report upsert) → ShouldNotify
// (send / send-no-runs / nothing) → external delivery. Sweep runs on its own
// schedule and flags resorts whose expected notification never fired.
//
// The engine never reads the wall clock; `now` is an explicit parameter on
// every time-dependent operation so callers (and tests) control time.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// GroomedRun is one entry from an upstream grooming report, already parsed
// by the fetch collaborator.
type GroomedRun struct {
	Name       string
	Difficulty *string
}

// Config holds the tunable cutoffs for the engine.
type Config struct {
	// Threshold is the rarity cutoff in (0,1): a run groomed in less than
	// this fraction of the trailing window is notable. Deployments differ
	// (community "blue moon" ~0.2, "hidden diamond" ~0.9), so it is never
	// hardcoded.
	Threshold float64

	// NoRunsHour is the local hour after which a zero-run day is considered
	// final. It also bounds the stale-duplicate suppression in Reconcile.
	NoRunsHour int

	// AlertMinute is the minute offset past NoRunsHour at which the audit
	// sweep becomes eligible.
	AlertMinute int
}

// Validate checks config ranges.
func (c Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("rarity threshold %v out of range (0,1)", c.Threshold)
	}
	if c.NoRunsHour < 0 || c.NoRunsHour > 23 {
		return fmt.Errorf("no-runs hour %d out of range", c.NoRunsHour)
	}
	if c.AlertMinute < 0 || c.AlertMinute > 59 {
		return fmt.Errorf("alert minute %d out of range", c.AlertMinute)
	}
	return nil
}

// ErrMissingNotable indicates a DailyReport without its derived
// NotableReport. The engine maintains the 1:1 invariant on every write, so
// hitting this is a programming error, not a recoverable condition.
var ErrMissingNotable = errors.New("report: daily report has no notable report")

// Engine evaluates grooming reports against historical state. Safe for
// concurrent use; operations on the same resort serialize on a per-resort
// critical section so gate and sweep reads never observe a daily report
// whose notable report has not been recomputed yet.
type Engine struct {
	store  store.Store
	cfg    Config
	logger *slog.Logger

	locks sync.Map // resort ID → *sync.Mutex
}

// NewEngine creates an Engine over the given store.
func NewEngine(st store.Store, cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, cfg: cfg, logger: logger}, nil
}

// lockResort enters the per-resort critical section.
func (e *Engine) lockResort(resortID int64) func() {
	v, _ := e.locks.LoadOrStore(resortID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// localTime converts now into the resort's operating timezone.
func (e *Engine) localTime(resort store.Resort, now time.Time) time.Time {
	return now.In(resort.Location())
}

// pastNoRunsHour reports whether local time has reached the hour after which
// a zero-run day is treated as final.
func (e *Engine) pastNoRunsHour(local time.Time) bool {
	return local.Hour() >= e.cfg.NoRunsHour
}
