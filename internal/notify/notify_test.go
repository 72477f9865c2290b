package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bluemoonski/bluemoon-data/internal/notify"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

var testResort = store.Resort{
	ID: 7, Name: "Wolf Basin", Slug: "wolf-basin", Topic: "grooming.wolf-basin",
}

func day(d int) time.Time {
	return time.Date(2026, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestNotableMessage(t *testing.T) {
	notable := store.NotableReport{
		Date: day(15),
		Runs: []store.Run{{Name: "Glades"}, {Name: "Jackpot"}, {Name: "Sidewinder"}},
	}
	msg := notify.NotableMessage(testResort, notable, day(15).Add(9*time.Hour))

	assert.Equal(t, notify.KindNotableRuns, msg.Kind)
	assert.Equal(t, "grooming.wolf-basin", msg.Topic)
	assert.Equal(t, "2026-01-15", msg.Date)
	assert.Equal(t, []string{"Glades", "Jackpot", "Sidewinder"}, msg.RunNames)
	assert.Equal(t, "Wolf Basin groomed today: Glades, Jackpot and Sidewinder", msg.Body)
}

func TestNotableMessage_SingleRun(t *testing.T) {
	notable := store.NotableReport{Date: day(15), Runs: []store.Run{{Name: "Glades"}}}
	msg := notify.NotableMessage(testResort, notable, day(15))
	assert.Equal(t, "Wolf Basin groomed today: Glades", msg.Body)
}

func TestNoRunsMessage(t *testing.T) {
	rep := store.DailyReport{Date: day(15)}
	msg := notify.NoRunsMessage(testResort, rep, day(15))
	assert.Equal(t, notify.KindNoRuns, msg.Kind)
	assert.Contains(t, msg.Body, "no groomed runs")
	assert.Empty(t, msg.RunNames)
}

func TestAlertMessage(t *testing.T) {
	notable := store.NotableReport{Date: day(15)}
	msg := notify.AlertMessage(testResort, notable, day(15))
	assert.Equal(t, notify.KindAlert, msg.Kind)
	assert.Contains(t, msg.Subject, "Missed notification")
}
