// Package memory provides an in-memory Store implementation. It backs the
// engine tests and local development without a database; the production
// implementation is store/postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	nextID      int64
	resorts     map[int64]store.Resort
	runs        map[int64]store.Run
	reports     map[int64]*dailyReport
	notables    map[int64]*notableReport // keyed by notable report ID
	notableByRp map[int64]int64          // report ID → notable report ID
	subscribers map[int64]int            // resort ID → subscriber count
}

type dailyReport struct {
	id       int64
	resortID int64
	date     time.Time
	runIDs   []int64
}

type notableReport struct {
	id           int64
	reportID     int64
	runIDs       []int64
	notification *store.Notification
	alert        *store.Alert
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		resorts:     make(map[int64]store.Resort),
		runs:        make(map[int64]store.Run),
		reports:     make(map[int64]*dailyReport),
		notables:    make(map[int64]*notableReport),
		notableByRp: make(map[int64]int64),
		subscribers: make(map[int64]int),
	}
}

func (s *Store) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

// AddResort registers a resort and returns it with an assigned ID.
func (s *Store) AddResort(r store.Resort) store.Resort {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextIDLocked()
	s.resorts[r.ID] = r
	return r
}

// SetSubscriberCount sets the subscriber count for a resort.
func (s *Store) SetSubscriberCount(resortID int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[resortID] = n
}

func (s *Store) ListResorts(_ context.Context) ([]store.Resort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Resort, 0, len(s.resorts))
	for _, r := range s.resorts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetResort(_ context.Context, id int64) (store.Resort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resorts[id]
	if !ok {
		return store.Resort{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetRunByName(_ context.Context, resortID int64, name string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.ResortID == resortID && r.Name == name {
			return r, nil
		}
	}
	return store.Run{}, store.ErrNotFound
}

func (s *Store) CreateRun(_ context.Context, run store.Run) (store.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ResortID == run.ResortID && r.Name == run.Name {
			return store.Run{}, store.ErrDuplicate
		}
	}
	run.ID = s.nextIDLocked()
	s.runs[run.ID] = run
	return run, nil
}

func (s *Store) SetRunDifficulty(_ context.Context, runID int64, difficulty string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	r.Difficulty = &difficulty
	s.runs[runID] = r
	return nil
}

func (s *Store) GetDailyReport(_ context.Context, resortID int64, date time.Time) (store.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = store.DateOf(date)
	for _, rep := range s.reports {
		if rep.resortID == resortID && rep.date.Equal(date) {
			return s.reportLocked(rep), nil
		}
	}
	return store.DailyReport{}, store.ErrNotFound
}

func (s *Store) CreateDailyReport(_ context.Context, resortID int64, date time.Time) (store.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date = store.DateOf(date)
	for _, rep := range s.reports {
		if rep.resortID == resortID && rep.date.Equal(date) {
			return store.DailyReport{}, store.ErrDuplicate
		}
	}
	rep := &dailyReport{id: s.nextIDLocked(), resortID: resortID, date: date}
	s.reports[rep.id] = rep
	return s.reportLocked(rep), nil
}

func (s *Store) ReplaceReportRuns(_ context.Context, reportID int64, runIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.reports[reportID]
	if !ok {
		return store.ErrNotFound
	}
	rep.runIDs = append([]int64(nil), runIDs...)
	return nil
}

func (s *Store) ReportsInWindow(_ context.Context, resortID int64, from, to time.Time) ([]store.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to = store.DateOf(from), store.DateOf(to)
	var out []store.DailyReport
	for _, rep := range s.reports {
		if rep.resortID != resortID {
			continue
		}
		if rep.date.Before(from) || rep.date.After(to) {
			continue
		}
		out = append(out, s.reportLocked(rep))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) LatestReport(_ context.Context, resortID int64) (store.DailyReport, error) {
	return s.latest(resortID, false)
}

func (s *Store) LatestReportWithRuns(_ context.Context, resortID int64) (store.DailyReport, error) {
	return s.latest(resortID, true)
}

func (s *Store) latest(resortID int64, withRuns bool) (store.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *dailyReport
	for _, rep := range s.reports {
		if rep.resortID != resortID {
			continue
		}
		if withRuns && len(rep.runIDs) == 0 {
			continue
		}
		if best == nil || rep.date.After(best.date) {
			best = rep
		}
	}
	if best == nil {
		return store.DailyReport{}, store.ErrNotFound
	}
	return s.reportLocked(best), nil
}

func (s *Store) UpsertNotableReport(_ context.Context, reportID int64, runIDs []int64) (store.NotableReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.reports[reportID]
	if !ok {
		return store.NotableReport{}, store.ErrNotFound
	}
	nid, ok := s.notableByRp[reportID]
	if !ok {
		nid = s.nextIDLocked()
		s.notables[nid] = &notableReport{id: nid, reportID: reportID}
		s.notableByRp[reportID] = nid
	}
	nr := s.notables[nid]
	nr.runIDs = append([]int64(nil), runIDs...)
	return s.notableLocked(nr, rep), nil
}

func (s *Store) NotableReportFor(_ context.Context, reportID int64) (store.NotableReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nid, ok := s.notableByRp[reportID]
	if !ok {
		return store.NotableReport{}, store.ErrNotFound
	}
	return s.notableLocked(s.notables[nid], s.reports[reportID]), nil
}

func (s *Store) RecentNotableReports(_ context.Context, resortID int64, limit int) ([]store.NotableReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.NotableReport
	for _, nr := range s.notables {
		rep := s.reports[nr.reportID]
		if rep == nil || rep.resortID != resortID || len(nr.runIDs) == 0 {
			continue
		}
		out = append(out, s.notableLocked(nr, rep))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateNotification(_ context.Context, notableReportID int64, kind store.NotificationKind, deliveryID string, sentAt time.Time) (store.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nr, ok := s.notables[notableReportID]
	if !ok {
		return store.Notification{}, store.ErrNotFound
	}
	if nr.notification != nil {
		return store.Notification{}, store.ErrDuplicate
	}
	n := store.Notification{
		ID:              s.nextIDLocked(),
		NotableReportID: notableReportID,
		Kind:            kind,
		DeliveryID:      deliveryID,
		SentAt:          sentAt,
	}
	nr.notification = &n
	return n, nil
}

func (s *Store) DeleteNotification(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, nr := range s.notables {
		if nr.notification != nil && nr.notification.ID == id {
			nr.notification = nil
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) CreateAlert(_ context.Context, notableReportID int64, deliveryID string, sentAt time.Time) (store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nr, ok := s.notables[notableReportID]
	if !ok {
		return store.Alert{}, store.ErrNotFound
	}
	if nr.alert != nil {
		return store.Alert{}, store.ErrDuplicate
	}
	a := store.Alert{
		ID:              s.nextIDLocked(),
		NotableReportID: notableReportID,
		DeliveryID:      deliveryID,
		SentAt:          sentAt,
	}
	nr.alert = &a
	return a, nil
}

func (s *Store) SubscriberCount(_ context.Context, resortID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribers[resortID], nil
}

// reportLocked materializes a DailyReport with its runs. Caller holds s.mu.
func (s *Store) reportLocked(rep *dailyReport) store.DailyReport {
	out := store.DailyReport{ID: rep.id, ResortID: rep.resortID, Date: rep.date}
	for _, id := range rep.runIDs {
		out.Runs = append(out.Runs, s.runs[id])
	}
	sort.Slice(out.Runs, func(i, j int) bool { return out.Runs[i].Name < out.Runs[j].Name })
	return out
}

func (s *Store) notableLocked(nr *notableReport, rep *dailyReport) store.NotableReport {
	out := store.NotableReport{
		ID:       nr.id,
		ReportID: nr.reportID,
		ResortID: rep.resortID,
		Date:     rep.date,
	}
	for _, id := range nr.runIDs {
		out.Runs = append(out.Runs, s.runs[id])
	}
	sort.Slice(out.Runs, func(i, j int) bool { return out.Runs[i].Name < out.Runs[j].Name })
	if nr.notification != nil {
		n := *nr.notification
		out.Notification = &n
	}
	if nr.alert != nil {
		a := *nr.alert
		out.Alert = &a
	}
	return out
}
