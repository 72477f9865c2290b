package store

import "errors"

// ErrNotFound is returned when a requested row does not exist. Callers use
// errors.Is to branch on it.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a uniqueness invariant would be violated:
// a second DailyReport for the same (resort, date), a second NotableReport
// for a report, or a second Notification/Alert for a NotableReport.
var ErrDuplicate = errors.New("store: duplicate row")
