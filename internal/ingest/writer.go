package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tendersync/db"
)

// TenderStore is the write surface the ingestion pipeline needs.
type TenderStore interface {
	UpsertTender(ctx context.Context, t *db.Tender) error
}

// Writer persists normalized records in fixed-size batches. Upserts inside a
// batch run concurrently; batches themselves run sequentially with a pacing
// delay so the store's connection pool is not flooded.
type Writer struct {
	store  TenderStore
	pacing time.Duration
	log    *zap.Logger
}

func NewWriter(store TenderStore, pacing time.Duration, log *zap.Logger) *Writer {
	return &Writer{store: store, pacing: pacing, log: log}
}

// WriteResult is the aggregate outcome of a write phase.
type WriteResult struct {
	Succeeded int
	Failed    int
}

// Write upserts every record, isolating per-record failures: a failed upsert
// is logged and counted but never aborts its batch or the run.
func (w *Writer) Write(ctx context.Context, tenders []db.Tender, batchSize int) WriteResult {
	if batchSize < 1 {
		batchSize = 1
	}

	var succeeded, failed int64
	for start := 0; start < len(tenders); start += batchSize {
		end := start + batchSize
		if end > len(tenders) {
			end = len(tenders)
		}
		batch := tenders[start:end]

		var g errgroup.Group
		var mu sync.Mutex
		var batchErr error
		for i := range batch {
			t := &batch[i]
			g.Go(func() error {
				if err := w.store.UpsertTender(ctx, t); err != nil {
					atomic.AddInt64(&failed, 1)
					mu.Lock()
					batchErr = multierr.Append(batchErr, fmt.Errorf("upsert %s: %w", t.OCID, err))
					mu.Unlock()
					return nil
				}
				atomic.AddInt64(&succeeded, 1)
				return nil
			})
		}
		g.Wait() //nolint:errcheck // goroutines never return errors, failures are counted

		if batchErr != nil {
			w.log.Warn("batch finished with failed upserts",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(batchErr))
		}

		if end < len(tenders) && w.pacing > 0 {
			select {
			case <-ctx.Done():
				w.log.Warn("write phase interrupted",
					zap.Int("remaining", len(tenders)-end),
					zap.Error(ctx.Err()))
				return WriteResult{Succeeded: int(succeeded), Failed: int(failed)}
			case <-time.After(w.pacing):
			}
		}
	}

	return WriteResult{Succeeded: int(succeeded), Failed: int(failed)}
}
