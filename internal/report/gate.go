package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Decision is the notification gate's verdict for a resort.
type Decision int

const (
	// DecisionNone means nothing should be sent.
	DecisionNone Decision = iota
	// DecisionSend means a notable-runs notification should be delivered.
	DecisionSend
	// DecisionSendNoRuns means a "no runs groomed today" notice should be
	// delivered.
	DecisionSendNoRuns
)

func (d Decision) String() string {
	switch d {
	case DecisionSend:
		return "send"
	case DecisionSendNoRuns:
		return "send_no_runs"
	default:
		return "none"
	}
}

// GateResult carries the decision and the state it applies to. Notable is
// set for both send kinds: for DecisionSendNoRuns it is the (empty) notable
// report of the zero-run day, which is where the resulting Notification row
// attaches. Superseded is true when a stale no_runs notification was removed
// to make way for a normal one.
type GateResult struct {
	Decision   Decision
	Notable    store.NotableReport
	Report     store.DailyReport
	Superseded bool
}

// ShouldNotify decides whether a notification is due for resort at now.
//
// The normal path evaluates the most recent report that has at least one
// groomed run. If its notable subset is non-empty and nothing has been sent
// for it, the decision is send; an existing no_runs notification for it is
// deleted first (the zero-run notice no longer reflects reality once notable
// runs arrive the same day). A report whose notable subset is empty, or that
// already carries a normal notification, falls through to the no-runs path.
//
// The no-runs path fires only once local time reaches the no-runs hour, and
// only when the most recent report overall has zero groomed runs and has not
// been notified yet.
//
// Re-evaluating after a send is safe: an already-notified report yields
// DecisionNone, so a failed delivery simply retries on the next tick.
func (e *Engine) ShouldNotify(ctx context.Context, resort store.Resort, now time.Time) (GateResult, error) {
	unlock := e.lockResort(resort.ID)
	defer unlock()

	latest, err := e.store.LatestReportWithRuns(ctx, resort.ID)
	switch {
	case err == nil:
		res, decided, gerr := e.evaluateNotable(ctx, resort, latest)
		if gerr != nil {
			return GateResult{}, gerr
		}
		if decided {
			return res, nil
		}
	case errors.Is(err, store.ErrNotFound):
		// never seen a groomed run; only the no-runs path can apply
	default:
		return GateResult{}, fmt.Errorf("load latest report with runs: %w", err)
	}

	return e.evaluateNoRuns(ctx, resort, now)
}

// evaluateNotable handles the notable-runs branch. decided is false when the
// gate should fall through to the no-runs path.
func (e *Engine) evaluateNotable(ctx context.Context, resort store.Resort, rep store.DailyReport) (GateResult, bool, error) {
	notable, err := e.store.NotableReportFor(ctx, rep.ID)
	if errors.Is(err, store.ErrNotFound) {
		return GateResult{}, false, fmt.Errorf("%w: report %d", ErrMissingNotable, rep.ID)
	}
	if err != nil {
		return GateResult{}, false, fmt.Errorf("load notable report: %w", err)
	}

	if len(notable.Runs) == 0 {
		return GateResult{}, false, nil
	}

	switch {
	case notable.Notification == nil:
		return GateResult{Decision: DecisionSend, Notable: notable, Report: rep}, true, nil

	case notable.Notification.Kind == store.KindNoRuns:
		// Supersede: the day started empty, got a no-runs notice, then a
		// late update brought notable runs. Remove the stale notice so the
		// upgrade goes out.
		if err := e.store.DeleteNotification(ctx, notable.Notification.ID); err != nil {
			return GateResult{}, false, fmt.Errorf("delete superseded notification: %w", err)
		}
		e.logger.Info("Superseded no-runs notification",
			"resort", resort.Slug, "date", rep.Date.Format(time.DateOnly))
		notable.Notification = nil
		return GateResult{Decision: DecisionSend, Notable: notable, Report: rep, Superseded: true}, true, nil

	default:
		// already notified; a later zero-run day may still owe a no-runs
		// notice, so fall through
		return GateResult{}, false, nil
	}
}

// evaluateNoRuns handles the zero-run branch.
func (e *Engine) evaluateNoRuns(ctx context.Context, resort store.Resort, now time.Time) (GateResult, error) {
	if !e.pastNoRunsHour(e.localTime(resort, now)) {
		return GateResult{Decision: DecisionNone}, nil
	}

	latest, err := e.store.LatestReport(ctx, resort.ID)
	if errors.Is(err, store.ErrNotFound) {
		return GateResult{Decision: DecisionNone}, nil
	}
	if err != nil {
		return GateResult{}, fmt.Errorf("load latest report: %w", err)
	}
	if len(latest.Runs) > 0 {
		return GateResult{Decision: DecisionNone}, nil
	}

	notable, err := e.store.NotableReportFor(ctx, latest.ID)
	if errors.Is(err, store.ErrNotFound) {
		return GateResult{}, fmt.Errorf("%w: report %d", ErrMissingNotable, latest.ID)
	}
	if err != nil {
		return GateResult{}, fmt.Errorf("load notable report: %w", err)
	}
	if notable.Notification != nil {
		return GateResult{Decision: DecisionNone}, nil
	}

	return GateResult{Decision: DecisionSendNoRuns, Notable: notable, Report: latest}, nil
}
