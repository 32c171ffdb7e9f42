// Package source implements the source-adapter role of the ingestion engine:
// the component invoked on every scheduler tick to produce one batch of
// sensor readings. Two adapters exist, a local synthetic generator and a
// remote HTTP fetcher; both emit the same batch shape.
package source

import (
	"context"
	"time"

	"livedash/internal/types"
)

// Adapter produces one batch of readings per tick. Implementations must
// round numeric fields to two decimals on emission and stamp every reading
// in a batch with the same timestamp.
type Adapter interface {
	// Mode identifies which source variant this adapter implements.
	Mode() types.SourceMode

	// Collect produces the batch for the tick firing at the given time.
	// A nil error with an empty batch is a legal no-op tick. Errors mean
	// the tick is skipped; they never stop the scheduler.
	Collect(ctx context.Context, at time.Time) (types.Batch, error)
}
