// Package engine implements the control surface and scheduler of the
// ingestion pipeline: a start/pause/reset lifecycle around a ticker loop that
// drives the active source adapter and folds its batches into the state
// window.
//
// Concurrency model: a single mutex serializes every state transition and
// every merge. Each armed schedule carries an epoch stamp; configuration
// changes bump the epoch and tear the old loop down before arming a new one,
// so there are never two overlapping schedules and a late batch from a
// superseded loop is discarded before it can touch the window.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"livedash/internal/source"
	"livedash/internal/types"
	"livedash/internal/window"
)

// Interval bounds for the scheduler. Out-of-range input is clamped, never
// rejected.
const (
	MinInterval = 200 * time.Millisecond
	MaxInterval = 5 * time.Second
)

// ErrEndpointNotConfigured is returned by SetMode when switching to remote
// mode without an endpoint URL to fetch from.
var ErrEndpointNotConfigured = errors.New("remote mode requires an endpoint URL")

// BatchSink receives every non-empty merged batch, with sequences assigned.
// The live-stream hub implements this; a nil sink disables fan-out.
type BatchSink interface {
	PublishBatch(batch types.Batch)
}

// ControlState is the externally visible control-surface state, returned by
// the control API after every transition.
type ControlState struct {
	RunState    types.RunState   `json:"run_state"`
	Mode        types.SourceMode `json:"mode"`
	IntervalMs  int64            `json:"interval_ms"`
	EndpointURL string           `json:"endpoint_url,omitempty"`
}

// Config holds the configuration for creating an Engine.
type Config struct {
	Window      *window.Window
	Mode        types.SourceMode
	Interval    time.Duration
	EndpointURL string
	SensorIDs   []string
	Seed        int64
	HTTPClient  *http.Client
	UserAgent   string
	Sink        BatchSink
	Logger      *slog.Logger
}

// Engine owns the scheduler lifecycle and the only write path into the state
// window.
type Engine struct {
	mu sync.Mutex

	win       *window.Window
	state     types.RunState
	mode      types.SourceMode
	interval  time.Duration
	endpoint  string
	sensorIDs []string
	seed      int64

	adapter source.Adapter

	// epoch identifies the currently armed schedule. Loop goroutines carry
	// the epoch they were armed with; applyBatch rejects stale epochs.
	epoch  uint64
	cancel context.CancelFunc
	loopWG sync.WaitGroup

	httpClient *http.Client
	userAgent  string
	sink       BatchSink
	logger     *slog.Logger
}

// New creates an Engine in the Idle state with the interval clamped to the
// configured range. Call Start to begin ticking.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	win := cfg.Window
	if win == nil {
		win = window.New(window.DefaultCapacity)
	}
	mode := cfg.Mode
	if !mode.Valid() {
		mode = types.ModeSynthetic
	}

	e := &Engine{
		win:        win,
		state:      types.RunStateIdle,
		mode:       mode,
		interval:   ClampInterval(cfg.Interval),
		endpoint:   cfg.EndpointURL,
		sensorIDs:  append([]string(nil), cfg.SensorIDs...),
		seed:       cfg.Seed,
		httpClient: cfg.HTTPClient,
		userAgent:  cfg.UserAgent,
		sink:       cfg.Sink,
		logger:     logger,
	}
	e.adapter = e.buildAdapter(mode)
	return e
}

// ClampInterval confines an interval to [MinInterval, MaxInterval]. A zero or
// negative value clamps to the minimum.
func ClampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}

// buildAdapter constructs the source adapter for a mode. The synthetic
// generator keeps its baseline walk across pause/resume because the adapter
// is only rebuilt on mode or endpoint changes.
func (e *Engine) buildAdapter(mode types.SourceMode) source.Adapter {
	if mode == types.ModeRemote {
		return source.NewFetcher(source.FetcherConfig{
			EndpointURL: e.endpoint,
			HTTPClient:  e.httpClient,
			UserAgent:   e.userAgent,
			Logger:      e.logger,
		})
	}
	return source.NewGenerator(e.sensorIDs, e.seed)
}

// Start transitions Idle -> Running and arms the schedule. Calling Start
// while already Running is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == types.RunStateRunning {
		return
	}
	e.state = types.RunStateRunning
	e.armLocked()
	e.logger.Info("engine started",
		"mode", e.mode,
		"interval", e.interval,
	)
}

// Pause transitions Running -> Idle and cancels future ticks immediately.
// An already-in-flight remote request is not cancelled; its result is
// discarded by the epoch check. Pause is idempotent.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == types.RunStateIdle {
		return
	}
	e.state = types.RunStateIdle
	e.disarmLocked()
	e.logger.Info("engine paused")
}

// Reset clears the state window in full. It is legal in either run state and
// does not change it. Holding the engine lock makes the reset mutually
// exclusive with any merge.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.win.Reset()
	e.logger.Info("state window reset")
}

// SetMode switches the source adapter. Legal in either state; if Running, the
// old schedule is torn down and a new one armed. Switching to remote mode
// without a configured endpoint is rejected.
func (e *Engine) SetMode(mode types.SourceMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode == types.ModeRemote && e.endpoint == "" {
		return ErrEndpointNotConfigured
	}
	if mode == e.mode {
		return nil
	}

	e.mode = mode
	e.adapter = e.buildAdapter(mode)
	e.rearmIfRunningLocked()
	e.logger.Info("source mode changed", "mode", mode)
	return nil
}

// SetInterval changes the tick period, clamping to the configured range.
// Legal in either state; if Running, the schedule restarts with the new
// period.
func (e *Engine) SetInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clamped := ClampInterval(d)
	if clamped == e.interval {
		return
	}

	e.interval = clamped
	e.rearmIfRunningLocked()
	e.logger.Info("tick interval changed", "interval", clamped)
}

// SetEndpoint changes the remote endpoint URL. If the engine is currently in
// remote mode, the fetcher is rebuilt (and the schedule restarted when
// Running) so the next tick hits the new endpoint.
func (e *Engine) SetEndpoint(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if url == e.endpoint {
		return
	}

	e.endpoint = url
	if e.mode == types.ModeRemote {
		e.adapter = e.buildAdapter(types.ModeRemote)
		e.rearmIfRunningLocked()
	}
	e.logger.Info("remote endpoint changed", "endpoint", url)
}

// Close tears down any armed schedule and waits for the loop goroutine to
// exit. The engine is left Idle and can be restarted.
func (e *Engine) Close() {
	e.mu.Lock()
	e.state = types.RunStateIdle
	e.disarmLocked()
	e.mu.Unlock()

	e.loopWG.Wait()
}

// State returns the externally visible control state.
func (e *Engine) State() ControlState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return ControlState{
		RunState:    e.state,
		Mode:        e.mode,
		IntervalMs:  e.interval.Milliseconds(),
		EndpointURL: e.endpoint,
	}
}

// Snapshot returns the current state-window projection.
func (e *Engine) Snapshot() types.Snapshot {
	return e.win.Snapshot()
}

// Window exposes the underlying state window for read-side consumers
// (handlers, exporter).
func (e *Engine) Window() *window.Window {
	return e.win
}

// armLocked bumps the epoch and starts a fresh loop goroutine. Any previous
// schedule must already be disarmed. Caller holds e.mu.
func (e *Engine) armLocked() {
	e.epoch++
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.loopWG.Add(1)
	go e.runLoop(ctx, e.adapter, e.interval, e.epoch)
}

// disarmLocked cancels the current loop, if any. Caller holds e.mu.
func (e *Engine) disarmLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// rearmIfRunningLocked restarts the schedule after a configuration change.
// The old timer is torn down before the new one is armed, so schedules never
// overlap. Caller holds e.mu.
func (e *Engine) rearmIfRunningLocked() {
	if e.state != types.RunStateRunning {
		return
	}
	e.disarmLocked()
	e.armLocked()
}

// runLoop fires ticks at the given period until its context is cancelled.
// Periodicity is best-effort; a collect that outlasts the period simply
// delays the next tick (time.Ticker drops missed ticks).
func (e *Engine) runLoop(ctx context.Context, adapter source.Adapter, interval time.Duration, epoch uint64) {
	defer e.loopWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, adapter, epoch)
		}
	}
}

// tick runs one collect-and-merge cycle. Collect failures make the tick a
// silent no-op: the next regular tick retries naturally, and nothing reaches
// the window.
func (e *Engine) tick(ctx context.Context, adapter source.Adapter, epoch uint64) {
	at := time.Now().UTC()

	batch, err := adapter.Collect(ctx, at)
	if err != nil {
		e.logger.Debug("tick skipped",
			"mode", adapter.Mode(),
			"error", err,
		)
		return
	}

	e.applyBatch(batch, epoch)
}

// applyBatch merges a batch into the window if its epoch is still current,
// then fans the merged readings out to the sink. Batches from superseded
// schedules (mode switched, interval changed, engine paused) are dropped
// whole; a merge is all-or-nothing.
func (e *Engine) applyBatch(batch types.Batch, epoch uint64) {
	e.mu.Lock()
	if epoch != e.epoch || e.state != types.RunStateRunning {
		e.mu.Unlock()
		e.logger.Debug("discarding batch from superseded schedule",
			"batch_id", batch.ID,
			"epoch", epoch,
		)
		return
	}

	merged := e.win.Merge(batch)
	sink := e.sink
	e.mu.Unlock()

	if len(merged) == 0 || sink == nil {
		return
	}

	// Publish outside the lock; a slow sink must not stall the next merge.
	sink.PublishBatch(types.Batch{
		ID:        batch.ID,
		Timestamp: batch.Timestamp,
		Readings:  merged,
	})
}
