package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/notify"
	"github.com/bluemoonski/bluemoon-data/internal/report"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Cycle runs one resort's fetch, reconcile, and notification pass. Publish
// failures leave no notification row behind, so the next cycle retries the
// delivery against the same gate decision.
func (s *Scheduler) Cycle(ctx context.Context, resort store.Resort) Result {
	start := s.clock.Now()
	res := Result{ResortID: resort.ID, Slug: resort.Slug, Decision: report.DecisionNone.String()}

	fail := func(outcome string, err error) Result {
		res.Error = err.Error()
		res.Duration = s.clock.Since(start)
		s.metrics.CyclesRun.WithLabelValues(outcome).Inc()
		s.metrics.CycleDuration.Observe(res.Duration.Seconds())
		s.logger.Warn("Cycle failed", "resort", resort.Slug, "stage", outcome, "error", err)
		return res
	}

	fetchStart := s.clock.Now()
	date, groomed, err := s.fetcher.FetchReport(ctx, resort)
	s.metrics.FetchDuration.Observe(s.clock.Since(fetchStart).Seconds())
	if err != nil {
		return fail("fetch_error", fmt.Errorf("fetch %s: %w", resort.Slug, err))
	}

	if _, err := s.engine.Reconcile(ctx, resort, date, groomed, start); err != nil {
		return fail("reconcile_error", fmt.Errorf("reconcile %s: %w", resort.Slug, err))
	}

	gate, err := s.engine.ShouldNotify(ctx, resort, start)
	if err != nil {
		return fail("gate_error", fmt.Errorf("gate %s: %w", resort.Slug, err))
	}
	res.Decision = gate.Decision.String()
	res.Superseded = gate.Superseded

	if gate.Decision != report.DecisionNone {
		delivered, err := s.deliver(ctx, resort, gate, start)
		if err != nil {
			return fail("delivery_error", fmt.Errorf("deliver %s: %w", resort.Slug, err))
		}
		res.Delivered = delivered
	}

	res.Success = true
	res.Duration = s.clock.Since(start)
	s.metrics.CyclesRun.WithLabelValues("ok").Inc()
	s.metrics.CycleDuration.Observe(res.Duration.Seconds())
	return res
}

// deliver publishes the gated message and records the notification only once
// delivery is confirmed. Resorts without subscribers skip the broker round
// trip entirely but still get a notification row, so the gate stays closed
// for the day. Delivered reports whether a broker publish happened.
func (s *Scheduler) deliver(ctx context.Context, resort store.Resort, gate report.GateResult, now time.Time) (bool, error) {
	var msg notify.Message
	var kind store.NotificationKind
	switch gate.Decision {
	case report.DecisionSend:
		msg = notify.NotableMessage(resort, gate.Notable, now)
		kind = store.KindNormal
	case report.DecisionSendNoRuns:
		msg = notify.NoRunsMessage(resort, gate.Report, now)
		kind = store.KindNoRuns
	default:
		return false, nil
	}

	subs, err := s.store.SubscriberCount(ctx, resort.ID)
	if err != nil {
		return false, fmt.Errorf("count subscribers: %w", err)
	}

	deliveryID := ""
	if subs > 0 {
		deliveryID, err = s.publisher.Publish(ctx, msg)
		if err != nil {
			return false, fmt.Errorf("publish %s: %w", msg.Kind, err)
		}
	}

	if _, err := s.store.CreateNotification(ctx, gate.Notable.ID, kind, deliveryID, now); err != nil {
		return false, fmt.Errorf("record notification: %w", err)
	}

	s.metrics.NotificationsSent.WithLabelValues(string(kind)).Inc()
	s.logger.Info("Notification sent",
		"resort", resort.Slug,
		"kind", kind,
		"subscribers", subs,
		"delivery_id", deliveryID,
		"superseded", gate.Superseded)
	return subs > 0, nil
}

// RunCycles runs a cycle for every resort through a bounded worker pool.
func (s *Scheduler) RunCycles(ctx context.Context) RunResult {
	start := s.clock.Now()
	var run RunResult

	resorts, err := s.store.ListResorts(ctx)
	if err != nil {
		run.Errors = append(run.Errors, err.Error())
		run.Duration = s.clock.Since(start)
		return run
	}

	run.ResortsFound = len(resorts)
	if len(resorts) == 0 {
		run.Duration = s.clock.Since(start)
		return run
	}

	workers := s.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(resorts) {
		workers = len(resorts)
	}

	ch := make(chan store.Resort, len(resorts))
	for _, r := range resorts {
		ch <- r
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for resort := range ch {
				r := s.Cycle(ctx, resort)

				mu.Lock()
				run.Results = append(run.Results, r)
				run.ResortsProcessed++
				if r.Success {
					run.ResortsSucceeded++
					if r.Decision != report.DecisionNone.String() {
						run.NotificationsSent++
					}
				} else {
					run.ResortsFailed++
					run.Errors = append(run.Errors, fmt.Sprintf("%s: %s", r.Slug, r.Error))
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	run.Duration = s.clock.Since(start)

	s.logger.Info("Reconcile pass complete", "summary", run.Summary())
	return run
}
