package report_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluemoonski/bluemoon-data/internal/report"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

func groomed(names ...string) []report.GroomedRun {
	out := make([]report.GroomedRun, len(names))
	for i, n := range names {
		out[i] = report.GroomedRun{Name: n}
	}
	return out
}

func withDifficulty(name, difficulty string) report.GroomedRun {
	return report.GroomedRun{Name: name, Difficulty: &difficulty}
}

func TestReconcile_CreatesReportAndRuns(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	rep, err := eng.Reconcile(ctx, resort, date(10), groomed("Jackpot", "Cornice"), at(10, 9))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Cornice", "Jackpot"}, runNames(rep.Runs))

	// Runs were lazily created.
	_, err = st.GetRunByName(ctx, resort.ID, "Jackpot")
	require.NoError(t, err)

	// The derived notable report exists (empty: no prior history).
	notable, err := st.NotableReportFor(ctx, rep.ID)
	require.NoError(t, err)
	assert.Empty(t, notable.Runs)
}

func TestReconcile_Idempotent(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	first, err := eng.Reconcile(ctx, resort, date(10), groomed("Jackpot", "Cornice"), at(10, 9))
	require.NoError(t, err)
	second, err := eng.Reconcile(ctx, resort, date(10), groomed("Jackpot", "Cornice"), at(10, 9))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same (resort, date) must reuse the report")
	assert.Equal(t, runNames(first.Runs), runNames(second.Runs))

	// No spurious duplicate run rows on the second call.
	run, err := st.GetRunByName(ctx, resort.ID, "Jackpot")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, store.Run{ResortID: resort.ID, Name: run.Name})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestReconcile_DeduplicatesFetchedNames(t *testing.T) {
	eng, _, resort := newTestEngine(t, defaultConfig())

	rep, err := eng.Reconcile(context.Background(), resort, date(10),
		groomed("Jackpot", "Jackpot", "Cornice"), at(10, 9))
	require.NoError(t, err)
	assert.Len(t, rep.Runs, 2)
}

func TestReconcile_DuplicateDaySuppression(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig()) // cutoff hour 8
	ctx := context.Background()

	_, err := eng.Reconcile(ctx, resort, date(9), groomed("A", "B"), at(9, 9))
	require.NoError(t, err)

	// Hour 7, fetched set identical to yesterday: likely a stale upstream
	// cache, today's report stays empty.
	rep, err := eng.Reconcile(ctx, resort, date(10), groomed("A", "B"), at(10, 7))
	require.NoError(t, err)
	assert.Empty(t, rep.Runs)

	stored, err := st.GetDailyReport(ctx, resort.ID, date(10))
	require.NoError(t, err)
	assert.Empty(t, stored.Runs)

	// Hour 8 (at the cutoff): the repeat is trusted.
	rep, err = eng.Reconcile(ctx, resort, date(10), groomed("A", "B"), at(10, 8))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, runNames(rep.Runs))
}

func TestReconcile_DifferingSetBypassesSuppression(t *testing.T) {
	eng, _, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	_, err := eng.Reconcile(ctx, resort, date(9), groomed("A", "B"), at(9, 9))
	require.NoError(t, err)

	// Early hour but a different set: real data, applied immediately.
	rep, err := eng.Reconcile(ctx, resort, date(10), groomed("A", "C"), at(10, 6))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "C"}, runNames(rep.Runs))
}

func TestReconcile_DifficultyResolution(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	// First observation carries no difficulty.
	_, err := eng.Reconcile(ctx, resort, date(9), groomed("Sidewinder"), at(9, 9))
	require.NoError(t, err)
	run, err := st.GetRunByName(ctx, resort.ID, "Sidewinder")
	require.NoError(t, err)
	assert.Nil(t, run.Difficulty)

	// A later fetch backfills it.
	_, err = eng.Reconcile(ctx, resort, date(10),
		[]report.GroomedRun{withDifficulty("Sidewinder", "blue"), {Name: "Cornice"}}, at(10, 9))
	require.NoError(t, err)
	run, err = st.GetRunByName(ctx, resort.ID, "Sidewinder")
	require.NoError(t, err)
	require.NotNil(t, run.Difficulty)
	assert.Equal(t, "blue", *run.Difficulty)

	// Fetched data wins on disagreement.
	_, err = eng.Reconcile(ctx, resort, date(11),
		[]report.GroomedRun{withDifficulty("Sidewinder", "black")}, at(11, 9))
	require.NoError(t, err)
	run, err = st.GetRunByName(ctx, resort.ID, "Sidewinder")
	require.NoError(t, err)
	assert.Equal(t, "black", *run.Difficulty)

	// A null fetch never clears a known difficulty.
	_, err = eng.Reconcile(ctx, resort, date(12), groomed("Sidewinder", "Glades"), at(12, 9))
	require.NoError(t, err)
	run, err = st.GetRunByName(ctx, resort.ID, "Sidewinder")
	require.NoError(t, err)
	require.NotNil(t, run.Difficulty)
	assert.Equal(t, "black", *run.Difficulty)
}

func TestReconcile_RecomputesNotableOnChange(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	for d := 3; d <= 9; d++ {
		_, err := eng.Reconcile(ctx, resort, date(d), groomed("Main Street"), at(d, 9))
		require.NoError(t, err)
	}

	rep, err := eng.Reconcile(ctx, resort, date(10), groomed("Main Street", "Glades"), at(10, 9))
	require.NoError(t, err)

	notable, err := st.NotableReportFor(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Glades"}, runNames(notable.Runs))

	// A later merge with another rare run recomputes the subset.
	rep, err = eng.Reconcile(ctx, resort, date(10), groomed("Main Street", "Glades", "Cornice"), at(10, 11))
	require.NoError(t, err)
	notable, err = st.NotableReportFor(ctx, rep.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Cornice", "Glades"}, runNames(notable.Runs))
}

// TestReconcile_FirstSeasonScenario walks the end-to-end history described
// in the product notes: a fresh resort flags nothing during its first week,
// then flags runs absent from the trailing window.
func TestReconcile_FirstSeasonScenario(t *testing.T) {
	eng, st, resort := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	// Day 1: first ever report.
	rep, err := eng.Reconcile(ctx, resort, date(1), groomed("A"), at(1, 9))
	require.NoError(t, err)
	notable, err := st.NotableReportFor(ctx, rep.ID)
	require.NoError(t, err)
	assert.Empty(t, notable.Runs, "empty window on day 1")

	// Days 2–8: only B is groomed.
	for d := 2; d <= 8; d++ {
		_, err := eng.Reconcile(ctx, resort, date(d), []report.GroomedRun{withDifficulty("B", "blue")}, at(d, 9))
		require.NoError(t, err)
	}

	// Day 9 window is days 2–8: A appears 0/7 (day 1 fell out), B 7/7.
	rep, err = eng.Reconcile(ctx, resort, date(9), []report.GroomedRun{{Name: "A"}, withDifficulty("B", "blue")}, at(9, 9))
	require.NoError(t, err)
	notable, err = st.NotableReportFor(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, runNames(notable.Runs))
}
