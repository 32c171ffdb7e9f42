package source

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"livedash/internal/types"
)

// Per-field random-walk parameters. Each tick perturbs a field by a uniform
// value in [-Delta/2, +Delta/2], then clamps to [Min, Max]. Clamping happens
// after perturbation, so values can sit at a bound for multiple ticks.
type fieldSpec struct {
	Delta   float64
	Min     float64
	Max     float64
	Nominal float64 // initial baseline value
}

var (
	pressureSpec    = fieldSpec{Delta: 0.8, Min: 90, Max: 120, Nominal: 101.32}
	temperatureSpec = fieldSpec{Delta: 0.35, Min: 18, Max: 45, Nominal: 24.0}
	humiditySpec    = fieldSpec{Delta: 1.2, Min: 20, Max: 90, Nominal: 55.0}
)

// baseline is one sensor's mutable physical state in raw (unrounded) floating
// form. It is the generator's working state, distinct from emitted readings.
type baseline struct {
	pressure    float64
	temperature float64
	humidity    float64
}

// Generator is the synthetic source adapter. It owns per-sensor baseline
// state and perturbs it within physical bounds on every tick, with no
// external I/O. It never fails.
//
// Baselines are explicit owned state (not package-level), so multiple
// independent simulated deployments can coexist and tests can inject a seed
// for determinism.
type Generator struct {
	mu        sync.Mutex
	sensorIDs []string
	baselines map[string]*baseline
	rng       *rand.Rand
}

// NewGenerator creates a Generator for the ordered sensor id set. A zero seed
// derives one from the wall clock.
func NewGenerator(sensorIDs []string, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	baselines := make(map[string]*baseline, len(sensorIDs))
	for _, id := range sensorIDs {
		baselines[id] = &baseline{
			pressure:    pressureSpec.Nominal,
			temperature: temperatureSpec.Nominal,
			humidity:    humiditySpec.Nominal,
		}
	}

	return &Generator{
		sensorIDs: append([]string(nil), sensorIDs...),
		baselines: baselines,
		rng:       rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1)),
	}
}

// Mode implements Adapter.
func (g *Generator) Mode() types.SourceMode {
	return types.ModeSynthetic
}

// Collect implements Adapter: one reading per configured sensor, all sharing
// the tick's timestamp, each field rounded to two decimals on emission.
func (g *Generator) Collect(_ context.Context, at time.Time) (types.Batch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := at.UTC().Format(types.TimestampFormat)
	readings := make([]types.Reading, 0, len(g.sensorIDs))
	for _, id := range g.sensorIDs {
		b := g.baselines[id]
		b.pressure = g.perturb(b.pressure, pressureSpec)
		b.temperature = g.perturb(b.temperature, temperatureSpec)
		b.humidity = g.perturb(b.humidity, humiditySpec)

		readings = append(readings, types.Reading{
			Timestamp:   ts,
			SensorID:    id,
			Pressure:    types.Round2(b.pressure),
			Temperature: types.Round2(b.temperature),
			Humidity:    types.Round2(b.humidity),
		})
	}

	return types.Batch{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Readings:  readings,
	}, nil
}

// perturb advances one field of the random walk and confines it to its bounds.
func (g *Generator) perturb(v float64, spec fieldSpec) float64 {
	v += (g.rng.Float64() - 0.5) * spec.Delta
	return clamp(v, spec.Min, spec.Max)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Baselines returns a copy of the current raw baseline values keyed by sensor
// id, in the order of the configured sensor set. Used by tests to verify the
// walk stays within physical bounds.
func (g *Generator) Baselines() map[string][3]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string][3]float64, len(g.baselines))
	for id, b := range g.baselines {
		out[id] = [3]float64{b.pressure, b.temperature, b.humidity}
	}
	return out
}
