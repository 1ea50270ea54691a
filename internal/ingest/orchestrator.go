// Package ingest implements the tender synchronization pipeline: paging
// through the upstream OCDS API, normalizing releases and upserting them
// into the store, in either incremental or full-resync mode.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tendersync/db"
	"tendersync/internal/config"
	"tendersync/internal/enrich"
	"tendersync/internal/ocds"
	"tendersync/models"
)

// Sync modes.
const (
	SyncTypeIncremental = "incremental"
	SyncTypeFull        = "full"
)

// Store is everything the orchestrator needs from the database.
type Store interface {
	TenderStore
	IsFullSyncDue(ctx context.Context, intervalDays int) (bool, error)
	LastSyncWatermark(ctx context.Context) (time.Time, error)
	CountOpenTenders(ctx context.Context) (int, error)
	InsertSyncRun(ctx context.Context, r *db.SyncRun) error
}

// Upstream fetches one page of releases for a date window.
type Upstream interface {
	FetchReleases(ctx context.Context, dateFrom, dateTo time.Time, pageNumber, pageSize, maxAttempts int) ([]ocds.Release, error)
}

// Orchestrator drives one sync run through its phases: determine mode,
// fetch loop, write phase, finalize. Operational failures (API errors,
// individual write failures) become statistics; only precondition failures
// (store unreachable, mode undeterminable) surface as errors.
type Orchestrator struct {
	store    Store
	upstream Upstream
	writer   *Writer
	cfg      *config.Config
	log      *zap.Logger

	now func() time.Time
}

func NewOrchestrator(store Store, upstream Upstream, writer *Writer, cfg *config.Config, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		upstream: upstream,
		writer:   writer,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Run executes one sync. The returned error means the run could not start or
// finish at all; everything else is reported inside the response.
func (o *Orchestrator) Run(ctx context.Context) (*models.SyncResponse, error) {
	start := o.now()

	syncType, budget, dateFrom, dateTo, err := o.determineMode(ctx, start)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.With(zap.String("run_id", runID), zap.String("sync_type", syncType))
	log.Info("sync run starting",
		zap.Time("date_from", dateFrom),
		zap.Time("date_to", dateTo),
		zap.Int("max_pages", budget.MaxPages),
		zap.Duration("time_budget", budget.TimeBudget))

	releases, loop := o.fetchLoop(ctx, log, budget, dateFrom, dateTo, start)

	tenders := make([]db.Tender, 0, len(releases))
	for _, rel := range releases {
		if rel.OCID == "" {
			log.Warn("dropping release without ocid")
			continue
		}
		tenders = append(tenders, enrich.MapRelease(rel))
	}
	written := o.writer.Write(ctx, tenders, budget.BatchSize)

	return o.finalize(ctx, log, finalizeInput{
		runID:     runID,
		syncType:  syncType,
		budget:    budget,
		dateFrom:  dateFrom,
		dateTo:    dateTo,
		startedAt: start,
		fetched:   len(releases),
		loop:      loop,
		written:   written,
	}), nil
}

func (o *Orchestrator) determineMode(ctx context.Context, now time.Time) (string, config.ModeBudget, time.Time, time.Time, error) {
	due, err := o.store.IsFullSyncDue(ctx, o.cfg.FullSyncIntervalDays)
	if err != nil {
		return "", config.ModeBudget{}, time.Time{}, time.Time{}, fmt.Errorf("determine sync mode: %w", err)
	}

	dateTo := now.Add(o.cfg.FutureHorizon)
	if due {
		return SyncTypeFull, o.cfg.Full, now.Add(-o.cfg.FullLookback), dateTo, nil
	}

	watermark, err := o.store.LastSyncWatermark(ctx)
	if err != nil {
		return "", config.ModeBudget{}, time.Time{}, time.Time{}, fmt.Errorf("read sync watermark: %w", err)
	}
	if watermark.IsZero() {
		watermark = now.Add(-o.cfg.IncrementalFallback)
	}
	return SyncTypeIncremental, o.cfg.Incremental, watermark, dateTo, nil
}

// loopState carries the fetch loop's counters into finalize.
type loopState struct {
	pagesProcessed    int
	apiCalls          int
	consecutiveErrors int
	stoppedReason     string
}

// fetchLoop pulls successive pages until a stopping condition fires: empty
// page threshold, page budget, time budget, or the consecutive-error
// threshold. Fetch errors are counted and the loop moves to the next page
// rather than aborting.
func (o *Orchestrator) fetchLoop(ctx context.Context, log *zap.Logger, budget config.ModeBudget, dateFrom, dateTo, start time.Time) ([]ocds.Release, loopState) {
	var (
		releases   []ocds.Release
		st         loopState
		emptyPages int
	)
	deadline := start.Add(budget.TimeBudget)

	for page := 1; ; page++ {
		if st.pagesProcessed >= budget.MaxPages {
			st.stoppedReason = "page budget reached"
			break
		}
		// Cooperative checkpoint: an in-flight fetch is allowed to finish,
		// the budget is only checked between pages.
		if o.now().After(deadline) {
			st.stoppedReason = "time budget exceeded"
			break
		}

		batch, err := o.upstream.FetchReleases(ctx, dateFrom, dateTo, page, o.cfg.OCDSPageSize, budget.FetchAttempts)
		st.apiCalls++
		if err != nil {
			if ctx.Err() != nil {
				st.stoppedReason = "run cancelled"
				break
			}
			st.consecutiveErrors++
			log.Warn("page fetch failed",
				zap.Int("page", page),
				zap.Int("consecutive_errors", st.consecutiveErrors),
				zap.Error(err))
			if st.consecutiveErrors >= budget.MaxConsecutiveErrors {
				st.stoppedReason = "consecutive error threshold reached"
				break
			}
			continue
		}

		st.consecutiveErrors = 0
		st.pagesProcessed++

		if len(batch) == 0 {
			emptyPages++
			if emptyPages >= budget.EmptyPageThreshold {
				st.stoppedReason = "no more data"
				break
			}
			continue
		}

		releases = append(releases, batch...)
		log.Debug("page fetched", zap.Int("page", page), zap.Int("records", len(batch)))

		if len(batch) < o.cfg.OCDSPageSize {
			// A short page usually means the tail of the result set. The
			// heuristic is configurable because the upstream API can emit
			// sparse pages mid-stream.
			if o.cfg.CountShortPages {
				emptyPages++
				if emptyPages >= budget.EmptyPageThreshold {
					st.stoppedReason = "no more data"
					break
				}
			}
		} else {
			emptyPages = 0
		}
	}

	return releases, st
}

type finalizeInput struct {
	runID     string
	syncType  string
	budget    config.ModeBudget
	dateFrom  time.Time
	dateTo    time.Time
	startedAt time.Time
	fetched   int
	loop      loopState
	written   WriteResult
}

func (o *Orchestrator) finalize(ctx context.Context, log *zap.Logger, in finalizeInput) *models.SyncResponse {
	elapsed := o.now().Sub(in.startedAt)
	elapsedMs := elapsed.Milliseconds()

	openTenders, err := o.store.CountOpenTenders(ctx)
	if err != nil {
		log.Warn("counting open tenders failed", zap.Error(err))
	}

	status := db.SyncStatusCompleted
	if in.loop.consecutiveErrors >= in.budget.MaxConsecutiveErrors {
		status = db.SyncStatusPartialFailure
	}

	run := &db.SyncRun{
		ID:                in.runID,
		SyncType:          in.syncType,
		TotalFetched:      in.fetched,
		OpenTenders:       openTenders,
		PagesProcessed:    in.loop.pagesProcessed,
		APICalls:          in.loop.apiCalls,
		ExecutionTimeMs:   elapsedMs,
		DateFrom:          in.dateFrom,
		DateTo:            in.dateTo,
		ConsecutiveErrors: in.loop.consecutiveErrors,
		Status:            status,
		StoppedReason:     in.loop.stoppedReason,
	}
	if err := o.store.InsertSyncRun(ctx, run); err != nil {
		log.Error("recording sync run failed", zap.Error(err))
	}

	stats := models.SyncStats{
		TotalFetched:      in.fetched,
		OpenTenders:       openTenders,
		SuccessfulUpserts: in.written.Succeeded,
		Errors:            in.written.Failed,
		PagesProcessed:    in.loop.pagesProcessed,
		APICallsMade:      in.loop.apiCalls,
		ConsecutiveErrors: in.loop.consecutiveErrors,
		ExecutionTimeMs:   elapsedMs,
		DateRange: models.DateRange{
			From: in.dateFrom.Format("2006-01-02"),
			To:   in.dateTo.Format("2006-01-02"),
		},
	}
	if in.loop.apiCalls > 0 {
		stats.RecordsPerAPICall = float64(in.fetched) / float64(in.loop.apiCalls)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		stats.RecordsPerSecond = float64(in.fetched) / secs
	}

	log.Info("sync run finished",
		zap.String("status", status),
		zap.String("stopped_reason", in.loop.stoppedReason),
		zap.Int("total_fetched", in.fetched),
		zap.Int("successful_upserts", in.written.Succeeded),
		zap.Int("errors", in.written.Failed),
		zap.Int64("execution_time_ms", elapsedMs))

	return &models.SyncResponse{
		Success:  true,
		Message:  fmt.Sprintf("%s sync %s: %s", in.syncType, status, in.loop.stoppedReason),
		SyncType: in.syncType,
		Stats:    stats,
	}
}
