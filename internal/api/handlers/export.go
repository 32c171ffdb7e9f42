package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"livedash/internal/engine"
	"livedash/internal/export"
)

// ExportHandler serves the CSV download of the history window.
type ExportHandler struct {
	engine *engine.Engine
	logger *slog.Logger

	// now is injectable so tests get stable export file names.
	now func() time.Time
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(eng *engine.Engine, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{engine: eng, logger: logger, now: time.Now}
}

// RegisterRoutes mounts the export endpoint onto the mux.
func (h *ExportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/export.csv", h.HandleExport)
}

// HandleExport streams the full history window as a CSV attachment,
// oldest-first. Clients advertising gzip support get a compressed body.
//
// GET /v1/export.csv
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	history := h.engine.Window().History()
	filename := export.Filename(h.now())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		if err := export.WriteCSVGzip(w, history); err != nil {
			h.logger.Error("csv export stream failed", "error", err, "rows", len(history))
		}
		return
	}

	if err := export.WriteCSV(w, history); err != nil {
		h.logger.Error("csv export stream failed", "error", err, "rows", len(history))
	}
}

// acceptsGzip reports whether the client advertised gzip support. The header
// grammar allows q-values; a bare substring check would match "gzip;q=0", so
// tokens are inspected individually.
func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		token, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(token, "gzip") {
			if strings.Contains(part, "q=0") && !strings.Contains(part, "q=0.") {
				return false
			}
			return true
		}
	}
	return false
}
