package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluemoonski/bluemoon-data/internal/notify"
	"github.com/bluemoonski/bluemoon-data/internal/observability"
	"github.com/bluemoonski/bluemoon-data/internal/report"
	"github.com/bluemoonski/bluemoon-data/internal/scheduler"
	"github.com/bluemoonski/bluemoon-data/internal/store"
	"github.com/bluemoonski/bluemoon-data/internal/store/memory"
)

type stubFetcher struct {
	date time.Time
	runs []report.GroomedRun
	err  error
}

func (f *stubFetcher) FetchReport(context.Context, store.Resort) (time.Time, []report.GroomedRun, error) {
	if f.err != nil {
		return time.Time{}, nil, f.err
	}
	return f.date, f.runs, nil
}

type stubPublisher struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (p *stubPublisher) Publish(_ context.Context, msg notify.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, msg)
	return fmt.Sprintf("dlv-%d", len(p.messages)), nil
}

func (p *stubPublisher) sent() []notify.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Message(nil), p.messages...)
}

func date(day int) time.Time {
	return time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC)
}

func at(day, hour int) time.Time {
	return time.Date(2026, time.January, day, hour, 0, 0, 0, time.UTC)
}

func newTestScheduler(t *testing.T, now time.Time) (*scheduler.Scheduler, *memory.Store, store.Resort, *stubFetcher, *stubPublisher) {
	t.Helper()

	st := memory.New()
	resort := st.AddResort(store.Resort{
		Name:     "Wolf Basin",
		Slug:     "wolf-basin",
		Timezone: "UTC",
		Topic:    "grooming.wolf-basin",
	})
	st.SetSubscriberCount(resort.ID, 3)

	cfg := report.Config{Threshold: 0.2, NoRunsHour: 8, AlertMinute: 30}
	eng, err := report.NewEngine(st, cfg, slog.Default())
	require.NoError(t, err)

	fetcher := &stubFetcher{}
	publisher := &stubPublisher{}
	sched := scheduler.New(
		st, eng, fetcher, publisher,
		clockwork.NewFakeClockAt(now),
		observability.NewMetricsForTesting(),
		2, slog.Default(),
	)
	return sched, st, resort, fetcher, publisher
}

// seedDay stores a historical report directly, bypassing the fetch path.
func seedDay(t *testing.T, st *memory.Store, resort store.Resort, d time.Time, names ...string) {
	t.Helper()
	ctx := context.Background()

	rep, err := st.CreateDailyReport(ctx, resort.ID, d)
	require.NoError(t, err)

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		run, err := st.GetRunByName(ctx, resort.ID, name)
		if errors.Is(err, store.ErrNotFound) {
			run, err = st.CreateRun(ctx, store.Run{ResortID: resort.ID, Name: name})
		}
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}
	require.NoError(t, st.ReplaceReportRuns(ctx, rep.ID, ids))
	_, err = st.UpsertNotableReport(ctx, rep.ID, nil)
	require.NoError(t, err)
}

func notableFor(t *testing.T, st *memory.Store, resort store.Resort, d time.Time) store.NotableReport {
	t.Helper()
	rep, err := st.GetDailyReport(context.Background(), resort.ID, d)
	require.NoError(t, err)
	notable, err := st.NotableReportFor(context.Background(), rep.ID)
	require.NoError(t, err)
	return notable
}

func TestCycle_DeliversNotableNotification(t *testing.T) {
	sched, st, resort, fetcher, publisher := newTestScheduler(t, at(9, 10))
	for day := 2; day <= 8; day++ {
		seedDay(t, st, resort, date(day), "Main Street")
	}
	fetcher.date = date(9)
	fetcher.runs = []report.GroomedRun{{Name: "Main Street"}, {Name: "Powder Keg"}}

	res := sched.Cycle(context.Background(), resort)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "send", res.Decision)
	assert.True(t, res.Delivered)

	sent := publisher.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindNotableRuns, sent[0].Kind)
	assert.Equal(t, []string{"Powder Keg"}, sent[0].RunNames)
	assert.Equal(t, "grooming.wolf-basin", sent[0].Topic)

	notable := notableFor(t, st, resort, date(9))
	require.NotNil(t, notable.Notification)
	assert.Equal(t, store.KindNormal, notable.Notification.Kind)
	assert.Equal(t, "dlv-1", notable.Notification.DeliveryID)
}

func TestCycle_ZeroSubscribersStillRecordsNotification(t *testing.T) {
	sched, st, resort, fetcher, publisher := newTestScheduler(t, at(9, 10))
	st.SetSubscriberCount(resort.ID, 0)
	for day := 2; day <= 8; day++ {
		seedDay(t, st, resort, date(day), "Main Street")
	}
	fetcher.date = date(9)
	fetcher.runs = []report.GroomedRun{{Name: "Powder Keg"}}

	res := sched.Cycle(context.Background(), resort)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "send", res.Decision)
	assert.False(t, res.Delivered, "no broker publish without subscribers")
	assert.Empty(t, publisher.sent())

	notable := notableFor(t, st, resort, date(9))
	require.NotNil(t, notable.Notification, "gate must still close for the day")
	assert.Empty(t, notable.Notification.DeliveryID)
}

func TestCycle_PublishFailureRetriesNextCycle(t *testing.T) {
	sched, st, resort, fetcher, publisher := newTestScheduler(t, at(9, 10))
	for day := 2; day <= 8; day++ {
		seedDay(t, st, resort, date(day), "Main Street")
	}
	fetcher.date = date(9)
	fetcher.runs = []report.GroomedRun{{Name: "Powder Keg"}}

	publisher.err = errors.New("broker unreachable")
	res := sched.Cycle(context.Background(), resort)
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "broker unreachable")
	assert.Nil(t, notableFor(t, st, resort, date(9)).Notification,
		"failed delivery must not be recorded")

	publisher.err = nil
	res = sched.Cycle(context.Background(), resort)
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Delivered)
	require.Len(t, publisher.sent(), 1)
	assert.NotNil(t, notableFor(t, st, resort, date(9)).Notification)
}

func TestCycle_FetchErrorReported(t *testing.T) {
	sched, _, resort, fetcher, publisher := newTestScheduler(t, at(9, 10))
	fetcher.err = errors.New("upstream timeout")

	res := sched.Cycle(context.Background(), resort)

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "upstream timeout")
	assert.Empty(t, publisher.sent())
}

func TestCycle_IdempotentAcrossTicks(t *testing.T) {
	sched, _, resort, fetcher, publisher := newTestScheduler(t, at(9, 10))
	fetcher.date = date(9)
	fetcher.runs = []report.GroomedRun{{Name: "Main Street"}}

	for i := 0; i < 3; i++ {
		res := sched.Cycle(context.Background(), resort)
		require.True(t, res.Success, res.Error)
	}
	assert.Empty(t, publisher.sent(), "first-window days have no notable runs to announce")
}

func TestRunCycles_ProcessesEveryResort(t *testing.T) {
	sched, st, _, fetcher, _ := newTestScheduler(t, at(9, 10))
	st.AddResort(store.Resort{Name: "Cedar Peak", Slug: "cedar-peak", Timezone: "UTC"})
	st.AddResort(store.Resort{Name: "Grey Owl", Slug: "grey-owl", Timezone: "UTC"})
	fetcher.date = date(9)
	fetcher.runs = []report.GroomedRun{{Name: "Main Street"}}

	run := sched.RunCycles(context.Background())

	assert.Equal(t, 3, run.ResortsFound)
	assert.Equal(t, 3, run.ResortsProcessed)
	assert.Equal(t, 3, run.ResortsSucceeded)
	assert.Zero(t, run.ResortsFailed)
}

func TestRunSweep_RaisesAlertOnce(t *testing.T) {
	// 9:00 local is past the 8:30 audit cutoff.
	sched, st, resort, _, publisher := newTestScheduler(t, at(9, 9))
	for day := 2; day <= 8; day++ {
		seedDay(t, st, resort, date(day), "Main Street")
	}

	res := sched.RunSweep(context.Background())
	require.Empty(t, res.Errors)
	assert.Equal(t, 1, res.Flagged)
	assert.Equal(t, 1, res.AlertsRaised)

	sent := publisher.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindAlert, sent[0].Kind)

	// A second sweep must not alert again.
	res = sched.RunSweep(context.Background())
	assert.Zero(t, res.Flagged)
	assert.Zero(t, res.AlertsRaised)
	assert.Len(t, publisher.sent(), 1)
}

func TestRunSweep_PublishFailureKeepsFlagEligible(t *testing.T) {
	sched, st, resort, _, publisher := newTestScheduler(t, at(9, 9))
	for day := 2; day <= 8; day++ {
		seedDay(t, st, resort, date(day), "Main Street")
	}

	publisher.err = errors.New("broker unreachable")
	res := sched.RunSweep(context.Background())
	assert.Equal(t, 1, res.Flagged)
	assert.Zero(t, res.AlertsRaised)
	require.Len(t, res.Errors, 1)

	publisher.err = nil
	res = sched.RunSweep(context.Background())
	assert.Equal(t, 1, res.Flagged)
	assert.Equal(t, 1, res.AlertsRaised)
}
