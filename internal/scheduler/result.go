package scheduler

import (
	"fmt"
	"time"
)

// Result tracks the outcome of one resort's cycle.
type Result struct {
	ResortID   int64
	Slug       string
	Decision   string
	Delivered  bool
	Superseded bool
	Success    bool
	Error      string
	Duration   time.Duration
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	status := "ok"
	if !r.Success {
		status = "FAILED"
	}
	return fmt.Sprintf("resort=%s decision=%s delivered=%v status=%s dur=%s",
		r.Slug, r.Decision, r.Delivered, status, r.Duration.Round(time.Millisecond))
}

// RunResult tracks the outcome of a full reconcile pass across resorts.
type RunResult struct {
	ResortsFound      int
	ResortsProcessed  int
	ResortsSucceeded  int
	ResortsFailed     int
	NotificationsSent int
	Duration          time.Duration
	Errors            []string
	Results           []Result
}

// Summary returns a human-readable summary.
func (r *RunResult) Summary() string {
	return fmt.Sprintf("found=%d processed=%d succeeded=%d failed=%d sent=%d dur=%s",
		r.ResortsFound, r.ResortsProcessed, r.ResortsSucceeded,
		r.ResortsFailed, r.NotificationsSent, r.Duration.Round(time.Millisecond))
}

// SweepResult tracks the outcome of one audit sweep.
type SweepResult struct {
	Flagged      int
	AlertsRaised int
	Duration     time.Duration
	Errors       []string
}

// Summary returns a human-readable summary.
func (r *SweepResult) Summary() string {
	return fmt.Sprintf("flagged=%d alerts=%d dur=%s",
		r.Flagged, r.AlertsRaised, r.Duration.Round(time.Millisecond))
}
