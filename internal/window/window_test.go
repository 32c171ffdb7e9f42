package window

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livedash/internal/types"
)

// makeBatch builds a batch of readings for the given sensor ids, all sharing
// one timestamp. Values are arbitrary but distinct per sensor.
func makeBatch(ts string, sensors ...string) types.Batch {
	readings := make([]types.Reading, len(sensors))
	for i, id := range sensors {
		readings[i] = types.Reading{
			Timestamp:   ts,
			SensorID:    id,
			Pressure:    100.00 + float64(i),
			Temperature: 24.00 + float64(i),
			Humidity:    55.00 + float64(i),
		}
	}
	return types.Batch{ID: "batch-" + ts, Timestamp: ts, Readings: readings}
}

func TestMerge_AssignsIncreasingSequences(t *testing.T) {
	w := New(10)

	merged := w.Merge(makeBatch("2026-08-29T10:00:00Z", "S1", "S2", "S3"))
	require.Len(t, merged, 3)

	for i, r := range merged {
		assert.Equal(t, uint64(i+1), r.Sequence, "sequences are pre-incremented in input order")
	}
	assert.Equal(t, uint64(3), w.Sequence())

	merged = w.Merge(makeBatch("2026-08-29T10:00:01Z", "S1"))
	require.Len(t, merged, 1)
	assert.Equal(t, uint64(4), merged[0].Sequence)
}

func TestMerge_EmptyBatch_NoOp(t *testing.T) {
	w := New(10)
	w.Merge(makeBatch("2026-08-29T10:00:00Z", "S1"))

	before := w.Snapshot()
	merged := w.Merge(types.Batch{Timestamp: "2026-08-29T10:00:01Z"})

	assert.Nil(t, merged)
	after := w.Snapshot()
	assert.Equal(t, before.SequenceCounter, after.SequenceCounter, "empty merges must not touch the counter")
	assert.Equal(t, before.RowCount, after.RowCount)
	assert.Equal(t, before.LatestBySensor, after.LatestBySensor)
}

func TestMerge_AbsentSensorRetainsLatest(t *testing.T) {
	w := New(10)
	w.Merge(makeBatch("2026-08-29T10:00:00Z", "S1", "S2"))

	s2Before, ok := w.Latest()["S2"]
	require.True(t, ok)

	// S2 is absent from the second batch.
	w.Merge(makeBatch("2026-08-29T10:00:01Z", "S1"))

	latest := w.Latest()
	assert.Equal(t, s2Before, latest["S2"], "last known good value must survive")
	assert.Equal(t, "2026-08-29T10:00:01Z", latest["S1"].Timestamp)
}

func TestMerge_HistoryIsNewestFirstBlockPrepend(t *testing.T) {
	w := New(10)
	w.Merge(makeBatch("2026-08-29T10:00:00Z", "S1", "S2"))
	w.Merge(makeBatch("2026-08-29T10:00:01Z", "S1", "S2"))

	history := w.History()
	require.Len(t, history, 4)

	// Newest batch at the front, preserving input order within the batch.
	assert.Equal(t, "2026-08-29T10:00:01Z", history[0].Timestamp)
	assert.Equal(t, "S1", history[0].SensorID)
	assert.Equal(t, "S2", history[1].SensorID)
	assert.Equal(t, "2026-08-29T10:00:00Z", history[2].Timestamp)
	assert.Equal(t, "S1", history[2].SensorID)
}

func TestMerge_CapacityBoundHolds(t *testing.T) {
	const capacity = 8
	w := New(capacity)

	for i := 0; i < 50; i++ {
		ts := fmt.Sprintf("2026-08-29T10:00:%02dZ", i%60)
		w.Merge(makeBatch(ts, "S1", "S2", "S3"))
		assert.LessOrEqual(t, w.Len(), capacity, "history must never exceed capacity")
	}

	// The survivors are the newest readings, i.e. the highest sequences.
	history := w.History()
	require.Len(t, history, capacity)
	assert.Equal(t, w.Sequence()-uint64(capacity)+1, history[capacity-1].Sequence, "oldest entries are evicted first")
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i-1].Sequence, history[i].Sequence, "history stays sequence-descending")
	}
}

func TestMerge_OversizedBatchKeepsNewestTail(t *testing.T) {
	w := New(3)

	sensors := make([]string, 5)
	for i := range sensors {
		sensors[i] = fmt.Sprintf("S%d", i+1)
	}
	w.Merge(makeBatch("2026-08-29T10:00:00Z", sensors...))

	history := w.History()
	require.Len(t, history, 3)
	// A batch larger than capacity keeps its front (input-order head), the
	// rest having been evicted as the block wrapped.
	assert.Equal(t, "S1", history[0].SensorID)
	assert.Equal(t, "S2", history[1].SensorID)
	assert.Equal(t, "S3", history[2].SensorID)
}

func TestReset_ClearsEverything(t *testing.T) {
	w := New(10)
	w.Merge(makeBatch("2026-08-29T10:00:00Z", "S1", "S2", "S3", "S4"))
	w.Merge(makeBatch("2026-08-29T10:00:01Z", "S1", "S2", "S3", "S4"))

	w.Reset()

	snap := w.Snapshot()
	assert.Empty(t, snap.LatestBySensor)
	assert.Empty(t, snap.History)
	assert.Zero(t, snap.RowCount)
	assert.Zero(t, snap.SequenceCounter)

	// Sequencing restarts at 1 after reset.
	merged := w.Merge(makeBatch("2026-08-29T10:00:02Z", "S1"))
	require.Len(t, merged, 1)
	assert.Equal(t, uint64(1), merged[0].Sequence)
}

func TestSnapshot_ThreeTicksFourSensors(t *testing.T) {
	w := New(200)

	for i := 0; i < 3; i++ {
		ts := fmt.Sprintf("2026-08-29T10:00:%02dZ", i)
		w.Merge(makeBatch(ts, "S1", "S2", "S3", "S4"))
	}

	snap := w.Snapshot()
	assert.Equal(t, 12, snap.RowCount)
	assert.Len(t, snap.LatestBySensor, 4)
	assert.Equal(t, 4, snap.SensorCount)

	// Each latest entry carries one of the 4 highest sequence numbers issued.
	seen := map[uint64]bool{}
	for _, r := range snap.LatestBySensor {
		assert.Greater(t, r.Sequence, uint64(8))
		assert.LessOrEqual(t, r.Sequence, uint64(12))
		assert.False(t, seen[r.Sequence], "latest sequences must be unique")
		seen[r.Sequence] = true
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	w := New(10)
	w.Merge(makeBatch("2026-08-29T10:00:00Z", "S1"))

	snap := w.Snapshot()
	snap.History[0].SensorID = "mutated"
	snap.LatestBySensor["S1"] = types.Reading{SensorID: "mutated"}

	assert.Equal(t, "S1", w.History()[0].SensorID)
	assert.Equal(t, "S1", w.Latest()["S1"].SensorID)
}

func TestNew_ZeroCapacityFallsBackToDefault(t *testing.T) {
	w := New(0)
	assert.Equal(t, DefaultCapacity, w.Capacity())
}
