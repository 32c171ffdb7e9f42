// Package handlers contains the HTTP handler implementations for the livedash
// API: the renderer-facing projection endpoints, the control surface, and the
// CSV export download.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"livedash/internal/core"
	"livedash/internal/engine"
	"livedash/internal/types"
)

// TelemetryHandler serves the read-side projection of the state window.
type TelemetryHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewTelemetryHandler creates a TelemetryHandler.
func NewTelemetryHandler(eng *engine.Engine, logger *slog.Logger) *TelemetryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelemetryHandler{engine: eng, logger: logger}
}

// RegisterRoutes mounts the projection endpoints onto the mux.
func (h *TelemetryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/snapshot", h.HandleSnapshot)
	r.Get("/latest", h.HandleLatest)
	r.Get("/history", h.HandleHistory)
}

// snapshotResponse is the full renderer contract: the window projection plus
// the control-surface state it was taken under.
type snapshotResponse struct {
	types.Snapshot
	RunState   types.RunState   `json:"run_state"`
	Mode       types.SourceMode `json:"mode"`
	IntervalMs int64            `json:"interval_ms"`
}

// HandleSnapshot returns the whole window projection and control state.
//
// GET /v1/snapshot
func (h *TelemetryHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	state := h.engine.State()
	resp := snapshotResponse{
		Snapshot:   h.engine.Snapshot(),
		RunState:   state.RunState,
		Mode:       state.Mode,
		IntervalMs: state.IntervalMs,
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// HandleLatest returns only the latest-per-sensor projection.
//
// GET /v1/latest
func (h *TelemetryHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: h.engine.Window().Latest(),
	})
}

// HandleHistory returns the history log, newest-first. An optional ?limit=N
// query caps the number of rows returned.
//
// GET /v1/history
func (h *TelemetryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	history := h.engine.Window().History()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidLimit,
				"limit must be a non-negative integer",
				err,
			))
			return
		}
		if limit < len(history) {
			history = history[:limit]
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: history})
}
