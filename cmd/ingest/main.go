// Command ingest is the Bluemoon grooming pipeline CLI. It runs the same
// cycles the api service schedules, but one-shot, which is what you want for
// cron fallbacks and for poking at a single resort while debugging.
//
// Usage:
//
//	bluemoon-ingest cycle
//	bluemoon-ingest cycle --resort wolf-basin
//	bluemoon-ingest sweep
//	bluemoon-ingest gate --resort wolf-basin
//	bluemoon-ingest resorts
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/bluemoonski/bluemoon-data/internal/config"
	"github.com/bluemoonski/bluemoon-data/internal/db"
	"github.com/bluemoonski/bluemoon-data/internal/fetch"
	"github.com/bluemoonski/bluemoon-data/internal/notify"
	"github.com/bluemoonski/bluemoon-data/internal/observability"
	"github.com/bluemoonski/bluemoon-data/internal/report"
	"github.com/bluemoonski/bluemoon-data/internal/scheduler"
	"github.com/bluemoonski/bluemoon-data/internal/store"
	"github.com/bluemoonski/bluemoon-data/internal/store/memory"
	"github.com/bluemoonski/bluemoon-data/internal/store/postgres"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "bluemoon-ingest",
		Short: "Bluemoon grooming pipeline CLI",
	}

	root.AddCommand(cycleCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(gateCmd())
	root.AddCommand(resortsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// cycle command
// --------------------------------------------------------------------------

func cycleCmd() *cobra.Command {
	var resortSlug string
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Fetch, reconcile, and notify for all resorts (or one)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				sched, publisher, err := buildScheduler(cfg, st)
				if err != nil {
					return err
				}
				defer publisher.Close()

				start := time.Now()
				if resortSlug != "" {
					resort, err := findResort(ctx, st, resortSlug)
					if err != nil {
						return err
					}
					res := sched.Cycle(ctx, resort)
					logger.Info("Cycle finished",
						"duration", time.Since(start).Round(time.Millisecond),
						"summary", res.Summary())
					if !res.Success {
						return fmt.Errorf("cycle failed: %s", res.Error)
					}
					return nil
				}

				run := sched.RunCycles(ctx)
				logger.Info("Cycle pass finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", run.Summary())
				for _, e := range run.Errors {
					logger.Error("cycle error", "error", e)
				}
				if run.ResortsFailed > 0 {
					return fmt.Errorf("%d of %d resorts failed", run.ResortsFailed, run.ResortsProcessed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&resortSlug, "resort", "", "Resort slug; empty = all resorts")
	return cmd
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Audit resorts for missed notifications and raise alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				sched, publisher, err := buildScheduler(cfg, st)
				if err != nil {
					return err
				}
				defer publisher.Close()

				res := sched.RunSweep(ctx)
				logger.Info("Sweep finished", "summary", res.Summary())
				for _, e := range res.Errors {
					logger.Error("sweep error", "error", e)
				}
				if len(res.Errors) > 0 {
					return fmt.Errorf("sweep finished with %d errors", len(res.Errors))
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// gate command
// --------------------------------------------------------------------------

func gateCmd() *cobra.Command {
	var resortSlug string
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Print a resort's notification gate decision without delivering",
		RunE: func(cmd *cobra.Command, args []string) error {
			if resortSlug == "" {
				return fmt.Errorf("--resort is required")
			}
			return runWith(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				engine, err := buildEngine(cfg, st)
				if err != nil {
					return err
				}
				resort, err := findResort(ctx, st, resortSlug)
				if err != nil {
					return err
				}

				res, err := engine.ShouldNotify(ctx, resort, time.Now())
				if err != nil {
					return fmt.Errorf("evaluate gate: %w", err)
				}

				logger.Info("Gate decision",
					"resort", resort.Slug,
					"decision", res.Decision.String(),
					"notable_runs", len(res.Notable.Runs),
					"superseded", res.Superseded)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&resortSlug, "resort", "", "Resort slug")
	return cmd
}

// --------------------------------------------------------------------------
// resorts command
// --------------------------------------------------------------------------

func resortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resorts",
		Short: "List configured resorts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				resorts, err := st.ListResorts(ctx)
				if err != nil {
					return fmt.Errorf("list resorts: %w", err)
				}
				for _, r := range resorts {
					subs, err := st.SubscriberCount(ctx, r.ID)
					if err != nil {
						return fmt.Errorf("count subscribers for %s: %w", r.Slug, err)
					}
					fmt.Printf("%d\t%s\t%s\t%s\tsubscribers=%d\n",
						r.ID, r.Slug, r.Name, r.Timezone, subs)
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

func buildEngine(cfg *config.Config, st store.Store) (*report.Engine, error) {
	engine, err := report.NewEngine(st, report.Config{
		Threshold:   cfg.RarityThreshold,
		NoRunsHour:  cfg.NoRunsNotifHour,
		AlertMinute: cfg.AlertNotifMin,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return engine, nil
}

func buildScheduler(cfg *config.Config, st store.Store) (*scheduler.Scheduler, *notify.KafkaPublisher, error) {
	engine, err := buildEngine(cfg, st)
	if err != nil {
		return nil, nil, err
	}
	publisher := notify.NewKafkaPublisher(cfg, logger)
	fetcher := fetch.NewClient(cfg.FetchTimeout, cfg.FetchPerMinute, logger)
	sched := scheduler.New(st, engine, fetcher, publisher,
		clockwork.NewRealClock(), observability.NewMetrics(),
		cfg.CycleWorkers, logger)
	return sched, publisher, nil
}

func findResort(ctx context.Context, st store.Store, slug string) (store.Resort, error) {
	resorts, err := st.ListResorts(ctx)
	if err != nil {
		return store.Resort{}, fmt.Errorf("list resorts: %w", err)
	}
	for _, r := range resorts {
		if r.Slug == slug {
			return r, nil
		}
	}
	return store.Resort{}, fmt.Errorf("no resort with slug %q", slug)
}

// runWith handles config loading, store selection, and context cancellation.
func runWith(fn func(ctx context.Context, cfg *config.Config, st store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return fn(ctx, cfg, memory.New())
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, postgres.New(pool.Pool))
}
