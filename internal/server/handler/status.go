package handler

import (
	"net/http"
)

// StatusHandler serves the backend run mode and build version.
type StatusHandler struct {
	Mode    string
	Version string
}

// NewStatusHandler creates a StatusHandler with the given mode and version.
func NewStatusHandler(mode, version string) *StatusHandler {
	return &StatusHandler{Mode: mode, Version: version}
}

// GetStatus responds with the current backend mode and version.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":    h.Mode,
		"version": h.Version,
	})
}
