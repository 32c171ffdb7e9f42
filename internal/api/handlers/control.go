package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"livedash/internal/core"
	"livedash/internal/engine"
	"livedash/internal/types"
)

// ControlHandler maps HTTP requests onto the engine's control surface.
type ControlHandler struct {
	engine    *engine.Engine
	validator *core.Validator
	logger    *slog.Logger
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(eng *engine.Engine, val *core.Validator, logger *slog.Logger) *ControlHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlHandler{engine: eng, validator: val, logger: logger}
}

// RegisterRoutes mounts the control endpoints onto the mux.
func (h *ControlHandler) RegisterRoutes(r chi.Router) {
	r.Route("/control", func(r chi.Router) {
		r.Post("/start", h.HandleStart)
		r.Post("/pause", h.HandlePause)
		r.Post("/reset", h.HandleReset)
		r.Get("/", h.HandleState)
		r.Put("/config", h.HandleConfig)
	})
}

// HandleStart transitions the engine to Running. A no-op if already Running.
//
// POST /v1/control/start
func (h *ControlHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.engine.Start()
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.engine.State()})
}

// HandlePause transitions the engine to Idle and stops future ticks.
//
// POST /v1/control/pause
func (h *ControlHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.engine.Pause()
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.engine.State()})
}

// HandleReset clears the state window without changing the run state.
//
// POST /v1/control/reset
func (h *ControlHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.engine.State()})
}

// HandleState returns the current control-surface state.
//
// GET /v1/control
func (h *ControlHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.engine.State()})
}

// configRequest is the control configuration payload. All fields are
// optional; only the ones present are applied. The interval is clamped by
// the engine, never rejected.
type configRequest struct {
	Mode        *types.SourceMode `json:"mode,omitempty"`
	IntervalMs  *int64            `json:"interval_ms,omitempty"`
	EndpointURL *string           `json:"endpoint_url,omitempty"`
}

// HandleConfig applies mode/interval/endpoint changes. Legal in either run
// state; if Running, the engine restarts its schedule. The endpoint is
// applied before the mode so that a single request can both point at a
// remote and switch to it.
//
// PUT /v1/control/config
func (h *ControlHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Mode != nil && !req.Mode.Valid() {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidMode,
			"mode must be one of: synthetic, remote",
			nil,
			map[string]any{"mode": string(*req.Mode)},
		))
		return
	}

	if req.EndpointURL != nil && *req.EndpointURL != "" {
		if err := h.validator.Var(*req.EndpointURL, "url"); err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidEndpoint,
				"endpoint_url must be a valid URL",
				err,
			))
			return
		}
	}

	if req.EndpointURL != nil {
		h.engine.SetEndpoint(*req.EndpointURL)
	}
	if req.IntervalMs != nil {
		h.engine.SetInterval(time.Duration(*req.IntervalMs) * time.Millisecond)
	}
	if req.Mode != nil {
		if err := h.engine.SetMode(*req.Mode); err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeConflictEndpointUnset,
				"cannot switch to remote mode without an endpoint URL",
				err,
			))
			return
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.engine.State()})
}
