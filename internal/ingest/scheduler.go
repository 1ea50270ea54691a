package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tendersync/models"
)

// Indexer pushes completed records to a downstream search index.
type Indexer interface {
	IndexRecent(ctx context.Context) (int, error)
}

// Scheduler is the pipeline's entry point. It runs the orchestrator and then
// a best-effort indexing step; ingestion correctness never depends on index
// freshness, so an indexing failure is surfaced but does not flip the run's
// reported success.
type Scheduler struct {
	orch    *Orchestrator
	indexer Indexer
	log     *zap.Logger
}

// NewScheduler wires the orchestrator with an optional indexer (nil disables
// the indexing step).
func NewScheduler(orch *Orchestrator, indexer Indexer, log *zap.Logger) *Scheduler {
	return &Scheduler{orch: orch, indexer: indexer, log: log}
}

// RunOnce performs a single sync invocation. Hard orchestrator failures are
// converted into a failure response so the caller's loop never crashes.
func (s *Scheduler) RunOnce(ctx context.Context) *models.SyncResponse {
	resp, err := s.orch.Run(ctx)
	if err != nil {
		s.log.Error("sync run failed", zap.Error(err))
		return &models.SyncResponse{
			Success: false,
			Error:   err.Error(),
		}
	}

	if s.indexer != nil {
		indexed, err := s.indexer.IndexRecent(ctx)
		if err != nil {
			s.log.Warn("search indexing failed", zap.Error(err))
			resp.IndexingError = err.Error()
		} else {
			s.log.Info("search index updated", zap.Int("records", indexed))
		}
	}

	return resp
}

// Start runs RunOnce on a fixed interval until the context is cancelled.
// One failed run never prevents the next tick.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.log.Info("background scheduler started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("background scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
