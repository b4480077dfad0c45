package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyhub/internal/service"
)

// CacheReporter exposes the snapshot cache state.
type CacheReporter interface {
	CacheStatus() service.CacheStatus
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	cache  CacheReporter
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(cache CacheReporter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{cache: cache, logger: logger}
}

// HealthCheck responds with liveness and the snapshot cache state. A stale
// or empty cache does not make the service unhealthy.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"cache":     h.cache.CacheStatus(),
	})
}
