package export

import (
	"context"
	"fmt"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/logger"
)

// DefaultBatchSize is the per-request page size used when the caller
// doesn't pick one. It stays well under the backend's hard cap.
const DefaultBatchSize = 500

// interBatchDelay throttles the request rate between pages. It bounds load
// on the backend; correctness doesn't depend on it.
const interBatchDelay = 100 * time.Millisecond

// Source is one paginated record stream: a count of everything matching and
// a way to fetch a bounded page at an offset.
type Source interface {
	Count(ctx context.Context) (int, error)
	Page(ctx context.Context, offset, limit int) ([]api.Record, error)
}

// Enricher optionally augments a record between fetch and write. It must be
// best-effort: returning the record unchanged is always acceptable.
type Enricher func(ctx context.Context, rec api.Record) api.Record

// Options tunes one export run.
type Options struct {
	// Max caps the number of exported records; 0 means everything matching.
	Max int
	// BatchSize is the per-request page size; 0 picks DefaultBatchSize.
	BatchSize int
	// Enrich, when set, runs on each record before it is written.
	Enrich Enricher
	// Progress, when set, is updated after every batch.
	Progress *Reporter
}

// Result summarizes a completed run.
type Result struct {
	Requested int
	Exported  int
	Elapsed   time.Duration
}

// Run drives the paginated fetch-and-write loop: count the matching set,
// clamp to the requested cap, then fetch sequential batches and write each
// record through to the sink as it arrives. Offsets advance by the
// requested batch size (the backend's pagination contract), not by the
// number of records a page actually returned; an empty page means the
// source is exhausted and ends the run early without error.
//
// The sink is not closed here: the caller owns the stream and closes it on
// both the success and failure paths. Any fetch or write error aborts the
// run; partial output already written stays in place.
func Run(ctx context.Context, src Source, sink Sink, opts Options) (Result, error) {
	start := time.Now()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > api.MaxPageSize {
		batchSize = api.MaxPageSize
	}

	total, err := src.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count matching records: %w", err)
	}

	toExport := total
	if opts.Max > 0 && opts.Max < toExport {
		toExport = opts.Max
	}
	if toExport <= 0 {
		return Result{Elapsed: time.Since(start)}, nil
	}

	logger.Debug("export starting: %d matching, exporting %d in batches of %d", total, toExport, batchSize)

	if opts.Progress != nil {
		opts.Progress.SetTarget(toExport)
	}

	exported := 0
	offset := 0
	for exported < toExport {
		limit := batchSize
		if remaining := toExport - exported; remaining < limit {
			limit = remaining
		}

		records, err := src.Page(ctx, offset, limit)
		if err != nil {
			return Result{Requested: toExport, Exported: exported, Elapsed: time.Since(start)},
				fmt.Errorf("failed to fetch batch at offset %d: %w", offset, err)
		}
		if len(records) == 0 {
			// Source exhausted before the count said it would be. The
			// backend's counts are advisory; stop without complaint.
			logger.Debug("export: empty page at offset %d with %d/%d exported", offset, exported, toExport)
			break
		}

		for _, rec := range records {
			if opts.Enrich != nil {
				rec = opts.Enrich(ctx, rec)
			}
			if err := sink.Write(rec); err != nil {
				return Result{Requested: toExport, Exported: exported, Elapsed: time.Since(start)},
					fmt.Errorf("failed to write record: %w", err)
			}
			exported++
		}

		offset += batchSize

		if opts.Progress != nil {
			opts.Progress.Update(exported)
		}

		if exported < toExport {
			select {
			case <-time.After(interBatchDelay):
			case <-ctx.Done():
				return Result{Requested: toExport, Exported: exported, Elapsed: time.Since(start)}, ctx.Err()
			}
		}
	}

	return Result{Requested: toExport, Exported: exported, Elapsed: time.Since(start)}, nil
}
