package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"livedash/internal/core"
	"livedash/internal/engine"
	"livedash/internal/types"
	"livedash/internal/window"
)

// ============================================================================
// Shared Test Harness
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds an Idle engine over a small window. Tests that need
// rows seed the window directly rather than waiting on real ticks.
func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	eng := engine.New(engine.Config{
		Window:    window.New(16),
		Mode:      types.ModeSynthetic,
		Interval:  500 * time.Millisecond,
		SensorIDs: []string{"S1", "S2"},
		Seed:      42,
		Logger:    testLogger(),
	})
	t.Cleanup(eng.Close)
	return eng
}

// newTestRouter mounts the API handlers under /v1 the way main does, without
// the global middleware chain.
func newTestRouter(eng *engine.Engine) http.Handler {
	logger := testLogger()
	val := core.NewValidator(logger)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		NewTelemetryHandler(eng, logger).RegisterRoutes(r)
		NewControlHandler(eng, val, logger).RegisterRoutes(r)
		NewExportHandler(eng, logger).RegisterRoutes(r)
	})
	return r
}

// seedBatch merges one batch with a reading per sensor, in the given order.
func seedBatch(t *testing.T, eng *engine.Engine, ts string, sensorIDs ...string) {
	t.Helper()

	readings := make([]types.Reading, 0, len(sensorIDs))
	for i, id := range sensorIDs {
		readings = append(readings, types.Reading{
			Timestamp:   ts,
			SensorID:    id,
			Pressure:    101.32 + float64(i),
			Temperature: 24.5,
			Humidity:    55.1,
		})
	}
	eng.Window().Merge(types.Batch{ID: "seed", Timestamp: ts, Readings: readings})
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the "data" field of the success envelope into out.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// decodeErrorCode returns the error code of the error envelope.
func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}
