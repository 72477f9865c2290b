package report

import (
	"context"
	"fmt"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// ComputeNotableRuns returns the subset of groomed that qualifies as rarely
// groomed on date: runs appearing in less than the configured threshold
// fraction of the resort's reports in the trailing 7-day window (exclusive
// of date itself).
//
// An empty window means there is not enough history to judge rarity, so
// nothing is flagged during a resort's first week. A tie at exactly the
// threshold is not notable.
func (e *Engine) ComputeNotableRuns(ctx context.Context, resort store.Resort, date time.Time, groomed []store.Run) ([]store.Run, error) {
	date = store.DateOf(date)
	from := date.AddDate(0, 0, -7)
	to := date.AddDate(0, 0, -1)

	window, err := e.store.ReportsInWindow(ctx, resort.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load trailing window: %w", err)
	}
	if len(window) == 0 {
		return nil, nil
	}

	// Appearances per run across the window. A groomed run absent from the
	// window has ratio 0 and is always notable.
	appearances := make(map[int64]int)
	for _, rep := range window {
		for _, r := range rep.Runs {
			appearances[r.ID]++
		}
	}

	var notable []store.Run
	for _, r := range groomed {
		ratio := float64(appearances[r.ID]) / float64(len(window))
		if ratio < e.cfg.Threshold {
			notable = append(notable, r)
		}
	}
	return notable, nil
}
