package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"livedash/internal/engine"
	"livedash/internal/stream"
)

// LiveHandler upgrades renderer clients to the websocket live stream.
type LiveHandler struct {
	engine *engine.Engine
	hub    *stream.Hub
	logger *slog.Logger
}

// NewLiveHandler creates a LiveHandler.
func NewLiveHandler(eng *engine.Engine, hub *stream.Hub, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveHandler{engine: eng, hub: hub, logger: logger}
}

// RegisterRoutes mounts the live-stream endpoint onto the mux.
func (h *LiveHandler) RegisterRoutes(r chi.Router) {
	r.Get("/live", h.HandleLive)
}

// HandleLive upgrades the connection and subscribes it to merged batches.
// The client is primed with a snapshot frame so it renders current state
// before the first live tick arrives.
//
// GET /v1/live
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	snap, err := json.Marshal(map[string]any{
		"type":    "snapshot",
		"payload": h.engine.Snapshot(),
	})
	if err != nil {
		h.logger.Error("failed to marshal priming snapshot", "error", err)
		snap = nil
	}

	h.hub.ServeWS(w, r, snap)
}
