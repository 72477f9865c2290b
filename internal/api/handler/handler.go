// Package handler provides HTTP handlers for the ops API. Read paths go
// through the store interface so the same handlers serve the in-memory store
// in local development and Postgres in production.
package handler

import (
	"net/http"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/api/respond"
	"github.com/bluemoonski/bluemoon-data/internal/config"
	"github.com/bluemoonski/bluemoon-data/internal/db"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store store.Store
	pool  *db.Pool // nil when running on the in-memory store
	cfg   *config.Config
}

// New creates a Handler with shared dependencies.
func New(st store.Store, pool *db.Pool, cfg *config.Config) *Handler {
	return &Handler{store: st, pool: pool, cfg: cfg}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Bluemoon Grooming Data API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity. Reports the in-memory store
// as healthy when no database is configured.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)

	if h.pool == nil {
		respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"database":  "in-memory",
			"timestamp": now,
		})
		return
	}

	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": now,
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": now,
	})
}
