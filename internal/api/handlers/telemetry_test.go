package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livedash/internal/types"
)

// ============================================================================
// Snapshot
// ============================================================================

func TestHandleSnapshot_ReflectsWindowAndControlState(t *testing.T) {
	eng := newTestEngine(t)
	router := newTestRouter(eng)
	seedBatch(t, eng, "2026-08-29T10:00:00Z", "S1", "S2")

	rec := doRequest(t, router, http.MethodGet, "/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		LatestBySensor  map[string]types.Reading `json:"latest_by_sensor"`
		History         []types.Reading          `json:"history"`
		SensorCount     int                      `json:"sensor_count"`
		RowCount        int                      `json:"row_count"`
		SequenceCounter uint64                   `json:"sequence_counter"`
		RunState        types.RunState           `json:"run_state"`
		Mode            types.SourceMode         `json:"mode"`
		IntervalMs      int64                    `json:"interval_ms"`
	}
	decodeData(t, rec, &data)

	assert.Equal(t, 2, data.SensorCount)
	assert.Equal(t, 2, data.RowCount)
	assert.Equal(t, uint64(2), data.SequenceCounter)
	assert.Len(t, data.History, 2)
	assert.Contains(t, data.LatestBySensor, "S1")
	assert.Contains(t, data.LatestBySensor, "S2")

	assert.Equal(t, types.RunStateIdle, data.RunState)
	assert.Equal(t, types.ModeSynthetic, data.Mode)
	assert.Equal(t, int64(500), data.IntervalMs)
}

// ============================================================================
// Latest
// ============================================================================

func TestHandleLatest_ReturnsNewestPerSensor(t *testing.T) {
	eng := newTestEngine(t)
	router := newTestRouter(eng)
	seedBatch(t, eng, "2026-08-29T10:00:00Z", "S1", "S2")
	seedBatch(t, eng, "2026-08-29T10:00:01Z", "S1")

	rec := doRequest(t, router, http.MethodGet, "/v1/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var latest map[string]types.Reading
	decodeData(t, rec, &latest)

	require.Len(t, latest, 2)
	assert.Equal(t, uint64(3), latest["S1"].Sequence)
	assert.Equal(t, uint64(2), latest["S2"].Sequence)
}

// ============================================================================
// History
// ============================================================================

func TestHandleHistory_NewestBatchFirst(t *testing.T) {
	eng := newTestEngine(t)
	router := newTestRouter(eng)
	seedBatch(t, eng, "2026-08-29T10:00:00Z", "S1", "S2")
	seedBatch(t, eng, "2026-08-29T10:00:01Z", "S1")

	rec := doRequest(t, router, http.MethodGet, "/v1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history []types.Reading
	decodeData(t, rec, &history)

	require.Len(t, history, 3)
	assert.Equal(t, uint64(3), history[0].Sequence)
	assert.Equal(t, "2026-08-29T10:00:01Z", history[0].Timestamp)
}

func TestHandleHistory_LimitTruncates(t *testing.T) {
	eng := newTestEngine(t)
	router := newTestRouter(eng)
	seedBatch(t, eng, "2026-08-29T10:00:00Z", "S1", "S2", "S3", "S4")

	rec := doRequest(t, router, http.MethodGet, "/v1/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history []types.Reading
	decodeData(t, rec, &history)

	require.Len(t, history, 2)
	assert.Equal(t, "S1", history[0].SensorID)
	assert.Equal(t, "S2", history[1].SensorID)
}

func TestHandleHistory_LimitZeroReturnsEmpty(t *testing.T) {
	eng := newTestEngine(t)
	router := newTestRouter(eng)
	seedBatch(t, eng, "2026-08-29T10:00:00Z", "S1", "S2")

	rec := doRequest(t, router, http.MethodGet, "/v1/history?limit=0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history []types.Reading
	decodeData(t, rec, &history)
	assert.Empty(t, history)
}

func TestHandleHistory_LimitLargerThanWindow(t *testing.T) {
	eng := newTestEngine(t)
	router := newTestRouter(eng)
	seedBatch(t, eng, "2026-08-29T10:00:00Z", "S1", "S2")

	rec := doRequest(t, router, http.MethodGet, "/v1/history?limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history []types.Reading
	decodeData(t, rec, &history)
	assert.Len(t, history, 2)
}

func TestHandleHistory_InvalidLimit(t *testing.T) {
	eng := newTestEngine(t)
	router := newTestRouter(eng)

	for _, limit := range []string{"abc", "-1", "1.5"} {
		t.Run(limit, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, "/v1/history?limit="+limit, "")

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(types.ErrCodeValidationInvalidLimit), decodeErrorCode(t, rec))
		})
	}
}
