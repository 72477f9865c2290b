// Package api wires the ops HTTP surface: health checks, Prometheus
// metrics, Swagger docs, and read-only report endpoints.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/bluemoonski/bluemoon-data/internal/api/handler"
	"github.com/bluemoonski/bluemoon-data/internal/config"
	"github.com/bluemoonski/bluemoon-data/internal/db"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// NewRouter creates and configures the Chi router with all middleware and
// routes. pool is nil when the service runs on the in-memory store.
func NewRouter(st store.Store, pool *db.Pool, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "Link"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(st, pool, cfg)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/resorts", h.ListResorts)
		r.Get("/resorts/{resortID}/reports/latest", h.GetLatestReport)
		r.Get("/resorts/{resortID}/notable", h.GetNotableReports)
	})

	return r
}
