// Package postgres implements store.Store on a pgxpool connection pool.
// All queries run through prepared statements registered in internal/db.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// uniqueViolation is the Postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

// Store is the Postgres-backed implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an initialized pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) ListResorts(ctx context.Context) ([]store.Resort, error) {
	rows, err := s.pool.Query(ctx, "list_resorts")
	if err != nil {
		return nil, fmt.Errorf("list resorts: %w", err)
	}
	defer rows.Close()

	var resorts []store.Resort
	for rows.Next() {
		var r store.Resort
		if err := rows.Scan(&r.ID, &r.Name, &r.Slug, &r.Timezone, &r.SourceURL, &r.Topic); err != nil {
			return nil, fmt.Errorf("scan resort: %w", err)
		}
		resorts = append(resorts, r)
	}
	return resorts, rows.Err()
}

func (s *Store) GetResort(ctx context.Context, id int64) (store.Resort, error) {
	var r store.Resort
	err := s.pool.QueryRow(ctx, "get_resort", id).
		Scan(&r.ID, &r.Name, &r.Slug, &r.Timezone, &r.SourceURL, &r.Topic)
	if err != nil {
		return store.Resort{}, mapErr(err)
	}
	return r, nil
}

func (s *Store) GetRunByName(ctx context.Context, resortID int64, name string) (store.Run, error) {
	var r store.Run
	err := s.pool.QueryRow(ctx, "run_by_name", resortID, name).
		Scan(&r.ID, &r.ResortID, &r.Name, &r.Difficulty)
	if err != nil {
		return store.Run{}, mapErr(err)
	}
	return r, nil
}

func (s *Store) CreateRun(ctx context.Context, run store.Run) (store.Run, error) {
	err := s.pool.QueryRow(ctx, "create_run", run.ResortID, run.Name, run.Difficulty).Scan(&run.ID)
	if err != nil {
		return store.Run{}, mapErr(err)
	}
	return run, nil
}

func (s *Store) SetRunDifficulty(ctx context.Context, runID int64, difficulty string) error {
	tag, err := s.pool.Exec(ctx, "set_run_difficulty", runID, difficulty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetDailyReport(ctx context.Context, resortID int64, date time.Time) (store.DailyReport, error) {
	var rep store.DailyReport
	err := s.pool.QueryRow(ctx, "report_by_date", resortID, store.DateOf(date)).
		Scan(&rep.ID, &rep.ResortID, &rep.Date)
	if err != nil {
		return store.DailyReport{}, mapErr(err)
	}
	rep.Date = store.DateOf(rep.Date)
	rep.Runs, err = s.runsFor(ctx, "report_runs", rep.ID)
	if err != nil {
		return store.DailyReport{}, err
	}
	return rep, nil
}

func (s *Store) CreateDailyReport(ctx context.Context, resortID int64, date time.Time) (store.DailyReport, error) {
	rep := store.DailyReport{ResortID: resortID, Date: store.DateOf(date)}
	err := s.pool.QueryRow(ctx, "create_report", resortID, rep.Date).Scan(&rep.ID)
	if err != nil {
		return store.DailyReport{}, mapErr(err)
	}
	return rep, nil
}

func (s *Store) ReplaceReportRuns(ctx context.Context, reportID int64, runIDs []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "clear_report_runs", reportID); err != nil {
		return fmt.Errorf("clear report runs: %w", err)
	}
	for _, id := range runIDs {
		if _, err := tx.Exec(ctx, "add_report_run", reportID, id); err != nil {
			return fmt.Errorf("add report run: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ReportsInWindow(ctx context.Context, resortID int64, from, to time.Time) ([]store.DailyReport, error) {
	rows, err := s.pool.Query(ctx, "reports_in_window", resortID, store.DateOf(from), store.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("reports in window: %w", err)
	}
	defer rows.Close()

	var reps []store.DailyReport
	for rows.Next() {
		var rep store.DailyReport
		if err := rows.Scan(&rep.ID, &rep.ResortID, &rep.Date); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rep.Date = store.DateOf(rep.Date)
		reps = append(reps, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range reps {
		reps[i].Runs, err = s.runsFor(ctx, "report_runs", reps[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return reps, nil
}

func (s *Store) LatestReport(ctx context.Context, resortID int64) (store.DailyReport, error) {
	return s.scanOneReport(ctx, "latest_report", resortID)
}

func (s *Store) LatestReportWithRuns(ctx context.Context, resortID int64) (store.DailyReport, error) {
	return s.scanOneReport(ctx, "latest_report_with_runs", resortID)
}

func (s *Store) scanOneReport(ctx context.Context, stmt string, resortID int64) (store.DailyReport, error) {
	var rep store.DailyReport
	err := s.pool.QueryRow(ctx, stmt, resortID).Scan(&rep.ID, &rep.ResortID, &rep.Date)
	if err != nil {
		return store.DailyReport{}, mapErr(err)
	}
	rep.Date = store.DateOf(rep.Date)
	rep.Runs, err = s.runsFor(ctx, "report_runs", rep.ID)
	if err != nil {
		return store.DailyReport{}, err
	}
	return rep, nil
}

func (s *Store) UpsertNotableReport(ctx context.Context, reportID int64, runIDs []int64) (store.NotableReport, error) {
	nr, err := s.NotableReportFor(ctx, reportID)
	if errors.Is(err, store.ErrNotFound) {
		err = s.pool.QueryRow(ctx, "create_notable", reportID).Scan(&nr.ID)
		if err != nil {
			return store.NotableReport{}, mapErr(err)
		}
		nr.ReportID = reportID
	} else if err != nil {
		return store.NotableReport{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.NotableReport{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, "clear_notable_runs", nr.ID); err != nil {
		return store.NotableReport{}, fmt.Errorf("clear notable runs: %w", err)
	}
	for _, id := range runIDs {
		if _, err := tx.Exec(ctx, "add_notable_run", nr.ID, id); err != nil {
			return store.NotableReport{}, fmt.Errorf("add notable run: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return store.NotableReport{}, err
	}
	return s.NotableReportFor(ctx, reportID)
}

func (s *Store) NotableReportFor(ctx context.Context, reportID int64) (store.NotableReport, error) {
	var nr store.NotableReport
	err := s.pool.QueryRow(ctx, "notable_by_report", reportID).
		Scan(&nr.ID, &nr.ReportID, &nr.ResortID, &nr.Date)
	if err != nil {
		return store.NotableReport{}, mapErr(err)
	}
	nr.Date = store.DateOf(nr.Date)
	return s.hydrateNotable(ctx, nr)
}

func (s *Store) RecentNotableReports(ctx context.Context, resortID int64, limit int) ([]store.NotableReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, "recent_notables", resortID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent notable reports: %w", err)
	}
	defer rows.Close()

	var out []store.NotableReport
	for rows.Next() {
		var nr store.NotableReport
		if err := rows.Scan(&nr.ID, &nr.ReportID, &nr.ResortID, &nr.Date); err != nil {
			return nil, fmt.Errorf("scan notable report: %w", err)
		}
		nr.Date = store.DateOf(nr.Date)
		out = append(out, nr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i], err = s.hydrateNotable(ctx, out[i])
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// hydrateNotable attaches runs, notification, and alert to a scanned
// NotableReport.
func (s *Store) hydrateNotable(ctx context.Context, nr store.NotableReport) (store.NotableReport, error) {
	var err error
	nr.Runs, err = s.runsFor(ctx, "notable_runs", nr.ID)
	if err != nil {
		return store.NotableReport{}, err
	}

	var n store.Notification
	err = s.pool.QueryRow(ctx, "notification_by_notable", nr.ID).
		Scan(&n.ID, &n.NotableReportID, &n.Kind, &n.DeliveryID, &n.SentAt)
	switch {
	case err == nil:
		nr.Notification = &n
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return store.NotableReport{}, fmt.Errorf("load notification: %w", err)
	}

	var a store.Alert
	err = s.pool.QueryRow(ctx, "alert_by_notable", nr.ID).
		Scan(&a.ID, &a.NotableReportID, &a.DeliveryID, &a.SentAt)
	switch {
	case err == nil:
		nr.Alert = &a
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return store.NotableReport{}, fmt.Errorf("load alert: %w", err)
	}

	return nr, nil
}

func (s *Store) CreateNotification(ctx context.Context, notableReportID int64, kind store.NotificationKind, deliveryID string, sentAt time.Time) (store.Notification, error) {
	n := store.Notification{NotableReportID: notableReportID, Kind: kind, DeliveryID: deliveryID, SentAt: sentAt}
	err := s.pool.QueryRow(ctx, "create_notification", notableReportID, string(kind), deliveryID, sentAt).Scan(&n.ID)
	if err != nil {
		return store.Notification{}, mapErr(err)
	}
	return n, nil
}

func (s *Store) DeleteNotification(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "delete_notification", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAlert(ctx context.Context, notableReportID int64, deliveryID string, sentAt time.Time) (store.Alert, error) {
	a := store.Alert{NotableReportID: notableReportID, DeliveryID: deliveryID, SentAt: sentAt}
	err := s.pool.QueryRow(ctx, "create_alert", notableReportID, deliveryID, sentAt).Scan(&a.ID)
	if err != nil {
		return store.Alert{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) SubscriberCount(ctx context.Context, resortID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "subscriber_count", resortID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) runsFor(ctx context.Context, stmt string, id int64) ([]store.Run, error) {
	rows, err := s.pool.Query(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var r store.Run
		if err := rows.Scan(&r.ID, &r.ResortID, &r.Name, &r.Difficulty); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
