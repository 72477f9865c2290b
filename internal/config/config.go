// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ingest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config struct — populated from environment variables.
type Config struct {
	// Database. Empty DatabaseURL selects the in-memory store (local dev).
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Delivery bus
	KafkaBrokers []string
	KafkaTopic   string

	// Upstream report fetching
	FetchTimeout    time.Duration
	FetchPerMinute  int // per-resort request budget for the feed client
	ReconcileEvery  time.Duration
	AuditSweepEvery time.Duration
	CycleWorkers    int

	// Rare-run engine cutoffs
	RarityThreshold float64 // fraction in (0,1)
	NoRunsNotifHour int     // local hour after which "no runs today" is final
	AlertNotifMin   int     // minute offset for the audit sweep threshold
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		KafkaBrokers: envList("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:   envOr("KAFKA_TOPIC", "grooming-notifications"),

		FetchTimeout:    time.Duration(envInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		FetchPerMinute:  envInt("FETCH_REQUESTS_PER_MINUTE", 30),
		ReconcileEvery:  time.Duration(envInt("RECONCILE_INTERVAL_MINUTES", 30)) * time.Minute,
		AuditSweepEvery: time.Duration(envInt("AUDIT_INTERVAL_MINUTES", 60)) * time.Minute,
		CycleWorkers:    envInt("CYCLE_WORKERS", 4),

		RarityThreshold: envFloat("RARITY_THRESHOLD", 0.2),
		NoRunsNotifHour: envInt("NORUNS_NOTIF_HOUR", 16),
		AlertNotifMin:   envInt("ALERT_NOTIF_MIN", 30),
	}

	if cfg.RarityThreshold <= 0 || cfg.RarityThreshold >= 1 {
		return nil, fmt.Errorf("RARITY_THRESHOLD must be in (0,1), got %v", cfg.RarityThreshold)
	}
	if cfg.NoRunsNotifHour < 0 || cfg.NoRunsNotifHour > 23 {
		return nil, fmt.Errorf("NORUNS_NOTIF_HOUR must be 0-23, got %d", cfg.NoRunsNotifHour)
	}
	if cfg.AlertNotifMin < 0 || cfg.AlertNotifMin > 59 {
		return nil, fmt.Errorf("ALERT_NOTIF_MIN must be 0-59, got %d", cfg.AlertNotifMin)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}

	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
