package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"livedash/internal/types"
)

// maxRemoteBodySize caps the remote response body read (1 MB). A batch for a
// handful of sensors is a few hundred bytes; anything near the cap is garbage.
const maxRemoteBodySize = 1 << 20

// ErrFetchInFlight is returned by Collect when a previous remote fetch is
// still outstanding. The tick is skipped; the next regular tick retries.
var ErrFetchInFlight = errors.New("remote fetch already in flight")

// remotePayload is the wire contract of the remote batch endpoint:
//
//	{ "ts": "<ISO-8601>", "readings": [ {"sensor": ..., "p": ..., "t": ..., "h": ...}, ... ] }
//
// Fields are decoded loosely (any) because upstream implementations disagree
// on whether values arrive as numbers or numeric strings. Coercion happens
// per entry; entries that fail are dropped individually.
type remotePayload struct {
	TS string `json:"ts"`
	// Readings is decoded in a second stage: a missing or non-array value
	// degrades to an empty batch instead of failing the whole tick.
	Readings json.RawMessage `json:"readings"`
}

type remoteEntry struct {
	Sensor any `json:"sensor"`
	P      any `json:"p"`
	T      any `json:"t"`
	H      any `json:"h"`
}

// FetcherConfig holds the configuration for creating a Fetcher.
type FetcherConfig struct {
	EndpointURL string
	HTTPClient  *http.Client
	UserAgent   string
	Logger      *slog.Logger
}

// Fetcher is the remote source adapter. It issues one GET per tick against
// the configured endpoint and coerces the JSON body into a batch.
//
// Resilience contract: network errors, non-200 statuses, and malformed bodies
// make the tick a silent no-op; they never surface to the scheduler. A
// circuit breaker sits in front of the endpoint so a dead upstream costs an
// open-breaker check instead of a connection timeout on every tick. At most
// one fetch is in flight at a time.
type Fetcher struct {
	endpoint  string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
	logger    *slog.Logger
	inFlight  atomic.Bool
}

// NewFetcher creates a Fetcher for the given endpoint. A nil HTTPClient gets
// a 5-second-timeout default; a nil Logger falls back to slog.Default.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "remote-batch-endpoint",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &Fetcher{
		endpoint:  cfg.EndpointURL,
		client:    client,
		breaker:   cb,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Mode implements Adapter.
func (f *Fetcher) Mode() types.SourceMode {
	return types.ModeRemote
}

// Endpoint returns the configured endpoint URL.
func (f *Fetcher) Endpoint() string {
	return f.endpoint
}

// Collect implements Adapter. Failure taxonomy:
//
//   - transport error, non-200 status, unparseable body: error returned, tick
//     skipped, nothing merged
//   - entry-level coercion failure: that entry is dropped, the rest of the
//     batch survives
//   - missing or non-array "readings": empty batch, no-op merge
//   - missing "ts": the tick time is substituted
func (f *Fetcher) Collect(ctx context.Context, at time.Time) (types.Batch, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return types.Batch{}, ErrFetchInFlight
	}
	defer f.inFlight.Store(false)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return types.Batch{}, fmt.Errorf("building remote request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.breaker.Execute(func() (*http.Response, error) {
		r, doErr := f.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode != http.StatusOK {
			r.Body.Close()
			return nil, fmt.Errorf("remote endpoint returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err != nil {
		return types.Batch{}, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"remote batch fetch failed",
			err,
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBodySize))
	if err != nil {
		return types.Batch{}, fmt.Errorf("reading remote body: %w", err)
	}

	var payload remotePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.Batch{}, types.NewAppError(
			types.ErrCodeUpstreamBadPayload,
			"remote batch body is not valid JSON",
			err,
		)
	}

	ts := payload.TS
	if ts == "" {
		ts = at.UTC().Format(types.TimestampFormat)
	}

	var entries []remoteEntry
	if len(payload.Readings) > 0 {
		if err := json.Unmarshal(payload.Readings, &entries); err != nil {
			f.logger.Debug("remote readings field is not a sequence, treating batch as empty")
			entries = nil
		}
	}

	readings := make([]types.Reading, 0, len(entries))
	for i, entry := range entries {
		r, ok := coerceEntry(entry, ts)
		if !ok {
			f.logger.Debug("dropping malformed remote reading",
				"index", i,
				"sensor", fmt.Sprintf("%v", entry.Sensor),
			)
			continue
		}
		readings = append(readings, r)
	}

	return types.Batch{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Readings:  readings,
	}, nil
}

// coerceEntry validates and normalizes one remote reading: sensor coerced to
// a string, p/t/h coerced to numbers rounded to two decimals. Returns false
// if any numeric field fails coercion.
func coerceEntry(entry remoteEntry, ts string) (types.Reading, bool) {
	sensor := coerceString(entry.Sensor)
	if sensor == "" {
		return types.Reading{}, false
	}

	p, okP := coerceNumber(entry.P)
	t, okT := coerceNumber(entry.T)
	h, okH := coerceNumber(entry.H)
	if !okP || !okT || !okH {
		return types.Reading{}, false
	}

	return types.Reading{
		Timestamp:   ts,
		SensorID:    sensor,
		Pressure:    types.Round2(p),
		Temperature: types.Round2(t),
		Humidity:    types.Round2(h),
	}, true
}

// coerceString renders a JSON value as a sensor id string. Numbers are
// formatted compactly; other shapes (objects, arrays, null) yield "".
func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

// coerceNumber extracts a float from a JSON value that may be a number or a
// numeric string.
func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
