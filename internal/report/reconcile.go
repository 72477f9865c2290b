package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Reconcile merges a freshly fetched groomed-run list into the persisted
// DailyReport for (resort, date). It is idempotent: reconciling the same
// input twice leaves the report unchanged and creates no duplicate runs.
//
// Stale-day suppression: early fetches often return yesterday's still-cached
// report. When the fetched name set exactly matches yesterday's and local
// time is before the no-runs hour, the fetched data is ignored; at or after
// that hour an identical set is assumed to be genuine repeat grooming.
//
// Every run-set replacement recomputes the report's NotableReport, so
// readers inside the per-resort critical section always see the two in sync.
func (e *Engine) Reconcile(ctx context.Context, resort store.Resort, date time.Time, fetched []GroomedRun, now time.Time) (store.DailyReport, error) {
	unlock := e.lockResort(resort.ID)
	defer unlock()

	date = store.DateOf(date)

	// Set semantics on names; a later duplicate entry with a difficulty
	// fills in one an earlier entry lacked.
	byName := make(map[string]*string, len(fetched))
	for _, f := range fetched {
		if d, ok := byName[f.Name]; !ok || (d == nil && f.Difficulty != nil) {
			byName[f.Name] = f.Difficulty
		}
	}

	rep, created, err := e.getOrCreateReport(ctx, resort, date)
	if err != nil {
		return store.DailyReport{}, err
	}

	yesterdayNames := map[string]bool{}
	yrep, err := e.store.GetDailyReport(ctx, resort.ID, date.AddDate(0, 0, -1))
	switch {
	case err == nil:
		yesterdayNames = yrep.RunNames()
	case errors.Is(err, store.ErrNotFound):
		// first report for this resort, or a gap day
	default:
		return store.DailyReport{}, fmt.Errorf("load previous report: %w", err)
	}

	if sameNames(byName, yesterdayNames) {
		local := e.localTime(resort, now)
		if !e.pastNoRunsHour(local) {
			e.logger.Info("Fetched run set repeats previous day before cutoff, keeping stored report",
				"resort", resort.Slug, "date", date.Format(time.DateOnly),
				"local_hour", local.Hour(), "created", created)
			return rep, nil
		}
	}

	if sameNames(byName, rep.RunNames()) {
		return rep, nil
	}

	runs, err := e.resolveRuns(ctx, resort, byName)
	if err != nil {
		return store.DailyReport{}, err
	}

	runIDs := make([]int64, len(runs))
	for i, r := range runs {
		runIDs[i] = r.ID
	}
	if err := e.store.ReplaceReportRuns(ctx, rep.ID, runIDs); err != nil {
		return store.DailyReport{}, fmt.Errorf("replace report runs: %w", err)
	}
	rep.Runs = runs

	if err := e.recomputeNotable(ctx, resort, rep); err != nil {
		return store.DailyReport{}, err
	}

	e.logger.Info("Report reconciled",
		"resort", resort.Slug, "date", date.Format(time.DateOnly), "runs", len(runs))
	return rep, nil
}

// getOrCreateReport loads the DailyReport for (resort, date), creating it —
// together with its (initially empty) NotableReport — when absent.
func (e *Engine) getOrCreateReport(ctx context.Context, resort store.Resort, date time.Time) (store.DailyReport, bool, error) {
	rep, err := e.store.GetDailyReport(ctx, resort.ID, date)
	if err == nil {
		return rep, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.DailyReport{}, false, fmt.Errorf("load daily report: %w", err)
	}

	rep, err = e.store.CreateDailyReport(ctx, resort.ID, date)
	if err != nil {
		return store.DailyReport{}, false, fmt.Errorf("create daily report: %w", err)
	}
	if _, err := e.store.UpsertNotableReport(ctx, rep.ID, nil); err != nil {
		return store.DailyReport{}, false, fmt.Errorf("create notable report: %w", err)
	}
	return rep, true, nil
}

// resolveRuns maps fetched names to Run rows, creating runs on first
// observation. Difficulty updates: a fetched non-null difficulty fills an
// unset one, and wins over a disagreeing stored one; a null fetch never
// clears a known difficulty.
func (e *Engine) resolveRuns(ctx context.Context, resort store.Resort, byName map[string]*string) ([]store.Run, error) {
	runs := make([]store.Run, 0, len(byName))
	for name, difficulty := range byName {
		run, err := e.store.GetRunByName(ctx, resort.ID, name)
		switch {
		case errors.Is(err, store.ErrNotFound):
			run, err = e.store.CreateRun(ctx, store.Run{ResortID: resort.ID, Name: name, Difficulty: difficulty})
			if err != nil {
				return nil, fmt.Errorf("create run %q: %w", name, err)
			}
		case err != nil:
			return nil, fmt.Errorf("look up run %q: %w", name, err)
		default:
			if difficulty != nil && (run.Difficulty == nil || *run.Difficulty != *difficulty) {
				if err := e.store.SetRunDifficulty(ctx, run.ID, *difficulty); err != nil {
					return nil, fmt.Errorf("update run %q difficulty: %w", name, err)
				}
				run.Difficulty = difficulty
			}
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// recomputeNotable recomputes and upserts the NotableReport for rep.
func (e *Engine) recomputeNotable(ctx context.Context, resort store.Resort, rep store.DailyReport) error {
	notable, err := e.ComputeNotableRuns(ctx, resort, rep.Date, rep.Runs)
	if err != nil {
		return err
	}
	ids := make([]int64, len(notable))
	for i, r := range notable {
		ids[i] = r.ID
	}
	if _, err := e.store.UpsertNotableReport(ctx, rep.ID, ids); err != nil {
		return fmt.Errorf("upsert notable report: %w", err)
	}
	return nil
}

// sameNames reports whether the fetched name set equals an existing name set.
func sameNames(fetched map[string]*string, existing map[string]bool) bool {
	if len(fetched) != len(existing) {
		return false
	}
	for name := range fetched {
		if !existing[name] {
			return false
		}
	}
	return true
}
