package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

func TestSweep_BeforeCutoff(t *testing.T) {
	eng, _, resort := newTestEngine(t, defaultConfig()) // 08:30 cutoff
	ctx := context.Background()
	seedNotableDay(t, eng, resort)

	flagged, err := eng.Sweep(ctx, time.Date(2026, time.January, 10, 8, 29, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, flagged)

	flagged, err = eng.Sweep(ctx, time.Date(2026, time.January, 10, 8, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, flagged, 1)
}

func TestSweep_SkipsNotifiedResort(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	rep := seedNotableDay(t, eng, resort)

	notable, err := st.NotableReportFor(ctx, rep.ID)
	require.NoError(t, err)
	_, err = st.CreateNotification(ctx, notable.ID, store.KindNormal, "msg-1", at(10, 9))
	require.NoError(t, err)

	flagged, err := eng.Sweep(ctx, at(10, 12))
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestSweep_SkipsResortWithoutHistory(t *testing.T) {
	eng, _, _ := newTestEngine(t, defaultConfig())

	flagged, err := eng.Sweep(context.Background(), at(10, 12))
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestSweep_FlagsUnnotifiedReport(t *testing.T) {
	eng, _, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	rep := seedNotableDay(t, eng, resort)

	flagged, err := eng.Sweep(ctx, at(10, 12))
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, rep.ID, flagged[0].ReportID)
	assert.Equal(t, resort.ID, flagged[0].ResortID)
}

func TestSweep_AlertNotDuplicated(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	seedNotableDay(t, eng, resort)

	flagged, err := eng.Sweep(ctx, at(10, 12))
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	_, err = st.CreateAlert(ctx, flagged[0].ID, "alert-1", at(10, 12))
	require.NoError(t, err)

	// Repeated sweeps never flag the same notable report again.
	for i := 0; i < 3; i++ {
		flagged, err = eng.Sweep(ctx, at(10, 13))
		require.NoError(t, err)
		assert.Empty(t, flagged)
	}
}

func TestSweep_MaterializesTodayReportWhenStale(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()
	seedNotableDay(t, eng, resort) // latest with-runs report is day 10

	// Two days later nothing has arrived at all.
	flagged, err := eng.Sweep(ctx, at(12, 12))
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, store.DateOf(date(12)), flagged[0].Date)
	assert.Empty(t, flagged[0].Runs)

	// The empty placeholder report for today now exists.
	rep, err := st.GetDailyReport(ctx, resort.ID, date(12))
	require.NoError(t, err)
	assert.Empty(t, rep.Runs)
}
