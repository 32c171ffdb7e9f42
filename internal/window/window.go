// Package window implements the authoritative in-memory store for live
// telemetry: a latest-value-per-sensor projection plus a fixed-capacity,
// newest-first history log backed by a ring buffer with oldest-first eviction.
//
// All mutation goes through Merge and Reset, each of which is atomic per call.
// Readers receive defensive copies, never views into internal storage.
package window

import (
	"sync"

	"livedash/internal/types"
)

// DefaultCapacity is the history bound used when no explicit capacity is
// configured. The reference deployment keeps the last 200 readings.
const DefaultCapacity = 200

// Window is the state window: latest-per-sensor map, capped history log, and
// the process-wide monotonic sequence counter. The zero value is not usable;
// construct with New.
type Window struct {
	mu sync.RWMutex

	latest map[string]types.Reading

	// Ring buffer for the history log. buf[start] is the logical front
	// (newest entry); older entries follow at increasing offsets mod capacity.
	buf   []types.Reading
	start int
	size  int

	seq uint64
}

// New creates an empty Window with the given history capacity. A capacity
// of zero or less falls back to DefaultCapacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		latest: make(map[string]types.Reading),
		buf:    make([]types.Reading, capacity),
	}
}

// Capacity returns the fixed history bound.
func (w *Window) Capacity() int {
	return len(w.buf)
}

// Merge atomically folds a batch into the window:
//
//   - Each reading is assigned the next sequence value (pre-increment, unique
//     and increasing within the batch in input order).
//   - latest[sensorID] is overwritten for every sensor present in the batch.
//     Sensors absent from the batch retain their previous latest value (the
//     "last known good" semantic, not an expiry).
//   - The full batch is prepended to the front of the history log in input
//     order; the oldest (tail) entries are evicted past capacity.
//
// An empty batch is a legal no-op: the counter is untouched and nothing
// mutates. Merge returns the readings as stored, with sequences assigned.
func (w *Window) Merge(batch types.Batch) []types.Reading {
	if batch.Empty() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	merged := make([]types.Reading, len(batch.Readings))
	for i, r := range batch.Readings {
		w.seq++
		r.Sequence = w.seq
		w.latest[r.SensorID] = r
		merged[i] = r
	}

	// Prepend the batch as a block. Pushing in reverse input order leaves the
	// block at the front of the log in its original order.
	for i := len(merged) - 1; i >= 0; i-- {
		w.pushFront(merged[i])
	}

	return merged
}

// pushFront inserts a reading at the logical front of the ring. When the ring
// is full, the slot it claims is the current tail, which is exactly the
// oldest-first eviction policy.
func (w *Window) pushFront(r types.Reading) {
	c := len(w.buf)
	w.start = (w.start - 1 + c) % c
	w.buf[w.start] = r
	if w.size < c {
		w.size++
	}
}

// Reset clears the window in full: latest map emptied, history emptied, and
// the sequence counter zeroed. Merges issued after a reset start again at
// sequence 1.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.latest = make(map[string]types.Reading)
	w.start = 0
	w.size = 0
	w.seq = 0
}

// Latest returns a copy of the latest-per-sensor projection.
func (w *Window) Latest() map[string]types.Reading {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latestLocked()
}

// History returns a copy of the history log, newest-first.
func (w *Window) History() []types.Reading {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.historyLocked()
}

// Len returns the current history log length.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Sequence returns the last sequence number issued (zero if none).
func (w *Window) Sequence() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.seq
}

// Snapshot returns a consistent copy of the whole window taken under one
// lock acquisition. This is the projection handed to renderers and exporters.
func (w *Window) Snapshot() types.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	latest := w.latestLocked()
	return types.Snapshot{
		LatestBySensor:  latest,
		History:         w.historyLocked(),
		SensorCount:     len(latest),
		RowCount:        w.size,
		SequenceCounter: w.seq,
	}
}

func (w *Window) latestLocked() map[string]types.Reading {
	out := make(map[string]types.Reading, len(w.latest))
	for id, r := range w.latest {
		out[id] = r
	}
	return out
}

func (w *Window) historyLocked() []types.Reading {
	c := len(w.buf)
	out := make([]types.Reading, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%c]
	}
	return out
}
