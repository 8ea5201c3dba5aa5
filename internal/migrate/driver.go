package migrate

import (
	"context"
	"time"

	"doc-migrator/internal/logging"
	"doc-migrator/internal/source"
)

// DefaultBatchSize is the number of documents pulled per window.
const DefaultBatchSize = 100

// progressEvery controls how often progress is logged.
const progressEvery = 10

// Processor handles one source document.
type Processor interface {
	Kind() string
	Collection() string
	Process(ctx context.Context, doc source.Document) Outcome
}

// Driver walks a source collection in fixed-size windows and feeds every
// document to a Processor. Per-document failures are recorded and the walk
// continues; source failures abort it.
type Driver struct {
	source    source.Store
	batchSize int
}

// NewDriver creates a Driver. A non-positive batchSize uses DefaultBatchSize.
func NewDriver(src source.Store, batchSize int) *Driver {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Driver{source: src, batchSize: batchSize}
}

// Run migrates every document of p's collection in cursor order.
func (d *Driver) Run(ctx context.Context, p Processor) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Kind: p.Kind(), Collection: p.Collection()}
	defer func() { stats.Elapsed = time.Since(start) }()

	logging.Logf(logging.Info, "=== Migrating %s ===", p.Kind())
	total, err := d.source.Count(ctx, p.Collection())
	if err != nil {
		return stats, &FatalError{Kind: p.Kind(), Op: "count", Err: err}
	}
	stats.Total = total
	logging.Logf(logging.Info, "Found %d %s to migrate", total, p.Kind())

	cur, err := d.source.Find(ctx, p.Collection(), source.Query{BatchSize: int32(d.batchSize)})
	if err != nil {
		return stats, &FatalError{Kind: p.Kind(), Op: "find", Err: err}
	}
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil {
			logging.Logf(logging.Warning, "Failed to close %s cursor: %v", p.Collection(), cerr)
		}
	}()

	batch := make([]source.Document, 0, d.batchSize)
	for window := 1; ; window++ {
		batch = batch[:0]
		for len(batch) < d.batchSize && cur.Next(ctx) {
			batch = append(batch, cur.Document())
		}
		if err := cur.Err(); err != nil {
			return stats, &FatalError{Kind: p.Kind(), Op: "fetch", Err: err}
		}
		if len(batch) == 0 {
			break
		}
		logging.Logf(logging.Debug, "%s: window %d holds %d documents", p.Kind(), window, len(batch))

		for _, doc := range batch {
			if err := ctx.Err(); err != nil {
				return stats, &FatalError{Kind: p.Kind(), Op: "process", Err: err}
			}
			out := p.Process(ctx, doc)
			stats.record(out)
			if out.Status == StatusFailed {
				logging.Logf(logging.Error, "Error migrating %s %s (%s): %v", p.Kind(), out.Label, out.ID, out.Err)
			}
			if stats.Processed%progressEvery == 0 {
				logging.Event(logging.Info).
					Str("kind", p.Kind()).
					Int("processed", stats.Processed).
					Int64("total", stats.Total).
					Int("created", stats.Created).
					Int("failed", stats.Failed).
					Msgf("Progress: %d/%d (%d success, %d failed)", stats.Processed, stats.Total, stats.Created, stats.Failed)
			}
		}
	}

	logging.Logf(logging.Info, "%s migration complete: %d success, %d skipped, %d failed", p.Kind(), stats.Created, stats.Skipped, stats.Failed)
	return stats, nil
}
