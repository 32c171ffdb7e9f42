// Package types defines the shared domain model for the livedash telemetry
// service: sensor readings, batches, the state-window snapshot consumed by
// renderers, and the application error taxonomy.
package types

import (
	"math"
	"strconv"
	"time"
)

// TimestampFormat is the wire format for batch timestamps. All readings in a
// batch share one timestamp string in this format.
const TimestampFormat = time.RFC3339

// Reading is one sensor's measurement at one tick. Numeric fields are rounded
// to two decimals at the point of entry into the state window; exported and
// displayed values must match this precision.
type Reading struct {
	Timestamp   string  `json:"timestamp"`
	Sequence    uint64  `json:"sequence"`
	SensorID    string  `json:"sensor_id"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Batch is the set of readings produced by one tick. Sequence numbers are
// assigned at merge time, not by the source, so readings inside a Batch carry
// Sequence == 0 until the window has accepted them.
type Batch struct {
	// ID is a correlation identifier assigned by the source adapter. It is
	// carried through logs and the live stream, never persisted in the window.
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Readings  []Reading `json:"readings"`
}

// Empty reports whether the batch carries no readings. Merging an empty batch
// is a legal no-op.
func (b Batch) Empty() bool {
	return len(b.Readings) == 0
}

// Snapshot is the renderer contract: a consistent copy of the state window
// taken under its lock. History is ordered newest-first.
type Snapshot struct {
	LatestBySensor  map[string]Reading `json:"latest_by_sensor"`
	History         []Reading          `json:"history"`
	SensorCount     int                `json:"sensor_count"`
	RowCount        int                `json:"row_count"`
	SequenceCounter uint64             `json:"sequence_counter"`
}

// Round2 rounds a value to two decimal places, the storage precision of the
// state window.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Format2 renders a value with exactly two decimal places, matching the
// precision contract of Round2. Used by the CSV exporter.
func Format2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
