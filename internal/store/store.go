// Package store defines the domain model and the persistence interface for
// grooming reports, notable reports, and their notification records.
//
// Two implementations exist: store/postgres (pgxpool, production) and
// store/memory (tests and local development without a database).
package store

import (
	"context"
	"time"
)

// NotificationKind distinguishes a regular notable-runs notification from a
// "no runs groomed today" notice.
type NotificationKind string

const (
	KindNormal NotificationKind = "normal"
	KindNoRuns NotificationKind = "no_runs"
)

// Resort is a ski area whose grooming reports we track. Owned externally;
// the engine treats it as a read-only reference.
type Resort struct {
	ID        int64
	Name      string
	Slug      string
	Timezone  string // IANA name, e.g. "US/Mountain"
	SourceURL string // normalized grooming report feed
	Topic     string // delivery topic key for subscriber messages
}

// Location resolves the resort's timezone, falling back to US/Mountain and
// then UTC when the stored name is unknown.
func (r Resort) Location() *time.Location {
	if loc, err := time.LoadLocation(r.Timezone); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation("US/Mountain"); err == nil {
		return loc
	}
	return time.UTC
}

// Run is a ski trail, scoped to a resort. Created lazily the first time it is
// observed groomed. Name is immutable; difficulty may be backfilled later.
type Run struct {
	ID         int64
	ResortID   int64
	Name       string
	Difficulty *string // "green", "blue", "black", ... nil when unknown
}

// DailyReport records which runs were groomed at a resort on one date.
// At most one exists per (resort, date).
type DailyReport struct {
	ID       int64
	ResortID int64
	Date     time.Time // normalized via DateOf
	Runs     []Run
}

// RunNames returns the report's run names as a membership set.
func (d DailyReport) RunNames() map[string]bool {
	names := make(map[string]bool, len(d.Runs))
	for _, r := range d.Runs {
		names[r.Name] = true
	}
	return names
}

// NotableReport is the derived subset of a DailyReport's runs that qualified
// as rarely groomed. Exactly one exists per DailyReport. Notification and
// Alert are attached when loaded so presence checks are plain nil checks.
type NotableReport struct {
	ID       int64
	ReportID int64
	ResortID int64
	Date     time.Time
	Runs     []Run

	Notification *Notification
	Alert        *Alert
}

// Notification records a verified delivery for a NotableReport. At most one
// exists per NotableReport.
type Notification struct {
	ID              int64
	NotableReportID int64
	Kind            NotificationKind
	DeliveryID      string // receipt from the delivery bus; empty for zero-subscriber sends
	SentAt          time.Time
}

// Alert records that the auditor flagged a NotableReport as having gone
// without a notification. Independent of Notification; at most one per
// NotableReport.
type Alert struct {
	ID              int64
	NotableReportID int64
	DeliveryID      string
	SentAt          time.Time
}

// DateOf normalizes a timestamp to its wall-clock date, represented as
// midnight UTC. All report dates pass through this so date equality and
// window arithmetic are exact.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Store is the persistence boundary for the reporting engine. All reads of a
// DailyReport include its run set; NotableReport reads include notification
// and alert state.
type Store interface {
	// Resorts
	ListResorts(ctx context.Context) ([]Resort, error)
	GetResort(ctx context.Context, id int64) (Resort, error)

	// Runs
	GetRunByName(ctx context.Context, resortID int64, name string) (Run, error)
	CreateRun(ctx context.Context, run Run) (Run, error)
	SetRunDifficulty(ctx context.Context, runID int64, difficulty string) error

	// Daily reports
	GetDailyReport(ctx context.Context, resortID int64, date time.Time) (DailyReport, error)
	CreateDailyReport(ctx context.Context, resortID int64, date time.Time) (DailyReport, error)
	ReplaceReportRuns(ctx context.Context, reportID int64, runIDs []int64) error
	// ReportsInWindow returns reports with from <= date <= to, oldest first.
	ReportsInWindow(ctx context.Context, resortID int64, from, to time.Time) ([]DailyReport, error)
	LatestReport(ctx context.Context, resortID int64) (DailyReport, error)
	LatestReportWithRuns(ctx context.Context, resortID int64) (DailyReport, error)

	// Notable reports
	UpsertNotableReport(ctx context.Context, reportID int64, runIDs []int64) (NotableReport, error)
	NotableReportFor(ctx context.Context, reportID int64) (NotableReport, error)
	RecentNotableReports(ctx context.Context, resortID int64, limit int) ([]NotableReport, error)

	// Notifications and alerts
	CreateNotification(ctx context.Context, notableReportID int64, kind NotificationKind, deliveryID string, sentAt time.Time) (Notification, error)
	DeleteNotification(ctx context.Context, id int64) error
	CreateAlert(ctx context.Context, notableReportID int64, deliveryID string, sentAt time.Time) (Alert, error)

	// Subscriptions (bookkeeping read only; subscription CRUD lives elsewhere)
	SubscriberCount(ctx context.Context, resortID int64) (int, error)
}
