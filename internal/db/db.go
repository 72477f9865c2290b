// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bluemoonski/bluemoon-data/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the store layer uses.
// Prepared statements eliminate parse overhead on every cycle.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Resorts
		"list_resorts": "SELECT id, name, slug, timezone, source_url, topic FROM resorts ORDER BY id",
		"get_resort":   "SELECT id, name, slug, timezone, source_url, topic FROM resorts WHERE id = $1",

		// Runs
		"run_by_name":        "SELECT id, resort_id, name, difficulty FROM runs WHERE resort_id = $1 AND name = $2",
		"create_run":         "INSERT INTO runs (resort_id, name, difficulty) VALUES ($1, $2, $3) RETURNING id",
		"set_run_difficulty": "UPDATE runs SET difficulty = $2 WHERE id = $1",

		// Daily reports
		"report_by_date": "SELECT id, resort_id, report_date FROM daily_reports WHERE resort_id = $1 AND report_date = $2",
		"create_report":  "INSERT INTO daily_reports (resort_id, report_date) VALUES ($1, $2) RETURNING id",
		"report_runs": `SELECT r.id, r.resort_id, r.name, r.difficulty
			FROM report_runs rr JOIN runs r ON r.id = rr.run_id
			WHERE rr.report_id = $1 ORDER BY r.name`,
		"clear_report_runs": "DELETE FROM report_runs WHERE report_id = $1",
		"add_report_run":    "INSERT INTO report_runs (report_id, run_id) VALUES ($1, $2)",
		"reports_in_window": `SELECT id, resort_id, report_date FROM daily_reports
			WHERE resort_id = $1 AND report_date BETWEEN $2 AND $3
			ORDER BY report_date`,
		"latest_report": `SELECT id, resort_id, report_date FROM daily_reports
			WHERE resort_id = $1 ORDER BY report_date DESC LIMIT 1`,
		"latest_report_with_runs": `SELECT dr.id, dr.resort_id, dr.report_date FROM daily_reports dr
			WHERE dr.resort_id = $1
			  AND EXISTS (SELECT 1 FROM report_runs rr WHERE rr.report_id = dr.id)
			ORDER BY dr.report_date DESC LIMIT 1`,

		// Notable reports
		"notable_by_report": `SELECT nr.id, nr.report_id, dr.resort_id, dr.report_date
			FROM notable_reports nr JOIN daily_reports dr ON dr.id = nr.report_id
			WHERE nr.report_id = $1`,
		"create_notable": "INSERT INTO notable_reports (report_id) VALUES ($1) RETURNING id",
		"notable_runs": `SELECT r.id, r.resort_id, r.name, r.difficulty
			FROM notable_report_runs nrr JOIN runs r ON r.id = nrr.run_id
			WHERE nrr.notable_report_id = $1 ORDER BY r.name`,
		"clear_notable_runs": "DELETE FROM notable_report_runs WHERE notable_report_id = $1",
		"add_notable_run":    "INSERT INTO notable_report_runs (notable_report_id, run_id) VALUES ($1, $2)",
		"recent_notables": `SELECT nr.id, nr.report_id, dr.resort_id, dr.report_date
			FROM notable_reports nr JOIN daily_reports dr ON dr.id = nr.report_id
			WHERE dr.resort_id = $1
			  AND EXISTS (SELECT 1 FROM notable_report_runs nrr WHERE nrr.notable_report_id = nr.id)
			ORDER BY dr.report_date DESC LIMIT $2`,

		// Notifications and alerts
		"notification_by_notable": `SELECT id, notable_report_id, kind, delivery_id, sent_at
			FROM notifications WHERE notable_report_id = $1`,
		"create_notification": `INSERT INTO notifications (notable_report_id, kind, delivery_id, sent_at)
			VALUES ($1, $2, $3, $4) RETURNING id`,
		"delete_notification": "DELETE FROM notifications WHERE id = $1",
		"alert_by_notable": `SELECT id, notable_report_id, delivery_id, sent_at
			FROM alerts WHERE notable_report_id = $1`,
		"create_alert": `INSERT INTO alerts (notable_report_id, delivery_id, sent_at)
			VALUES ($1, $2, $3) RETURNING id`,

		// Subscriptions
		"subscriber_count": "SELECT COUNT(*) FROM subscriptions WHERE resort_id = $1 AND active",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
