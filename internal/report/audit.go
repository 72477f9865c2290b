package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Sweep is the second line of defense behind ShouldNotify: it finds resorts
// whose expected notification never fired and returns the notable reports
// that need an operational alert. The caller delivers the alert message and
// persists one Alert row per flagged report on confirmed delivery.
//
// A resort is evaluated only once its local time reaches
// NoRunsHour:AlertMinute. A failure while auditing one resort is logged and
// skipped; it never blocks the rest of the sweep.
func (e *Engine) Sweep(ctx context.Context, now time.Time) ([]store.NotableReport, error) {
	resorts, err := e.store.ListResorts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resorts: %w", err)
	}

	var flagged []store.NotableReport
	for _, resort := range resorts {
		local := e.localTime(resort, now)
		cutoff := time.Date(local.Year(), local.Month(), local.Day(),
			e.cfg.NoRunsHour, e.cfg.AlertMinute, 0, 0, local.Location())
		if local.Before(cutoff) {
			continue
		}

		notable, err := e.auditResort(ctx, resort, local)
		if err != nil {
			e.logger.Warn("Audit failed for resort", "resort", resort.Slug, "error", err)
			continue
		}
		if notable != nil {
			flagged = append(flagged, *notable)
		}
	}
	return flagged, nil
}

// auditResort checks one resort and returns the notable report to alert on,
// or nil when the resort is healthy (notified, already alerted, or has no
// grooming history at all).
func (e *Engine) auditResort(ctx context.Context, resort store.Resort, local time.Time) (*store.NotableReport, error) {
	unlock := e.lockResort(resort.ID)
	defer unlock()

	rep, err := e.store.LatestReportWithRuns(ctx, resort.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest report with runs: %w", err)
	}

	// Nothing arrived today: materialize an empty report for today so there
	// is a notable report to hang the alert on, then audit that instead.
	today := store.DateOf(local)
	if !rep.Date.Equal(today) {
		todayRep, err := e.store.GetDailyReport(ctx, resort.ID, today)
		if errors.Is(err, store.ErrNotFound) {
			todayRep, _, err = e.getOrCreateReport(ctx, resort, today)
		}
		if err != nil {
			return nil, fmt.Errorf("materialize today's report: %w", err)
		}
		rep = todayRep
	}

	notable, err := e.store.NotableReportFor(ctx, rep.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: report %d", ErrMissingNotable, rep.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("load notable report: %w", err)
	}

	if notable.Notification != nil {
		return nil, nil // healthy
	}
	if notable.Alert != nil {
		return nil, nil // already flagged
	}
	return &notable, nil
}
