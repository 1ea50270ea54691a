// Package search pushes completed tender records to an external document
// index. The integration is best-effort: the ingestion pipeline stays correct
// whether or not the index is reachable.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tendersync/db"
)

// Store provides the recently-updated records to index.
type Store interface {
	RecentlyUpdatedTenders(ctx context.Context, since time.Time, limit int) ([]db.Tender, error)
}

// Indexer POSTs recently-updated tenders to the configured index endpoint.
type Indexer struct {
	endpoint   string
	store      Store
	httpClient *http.Client
	log        *zap.Logger

	// Window bounds the "recently updated" query; one sync interval plus
	// slack is enough since indexing runs after every sync.
	Window time.Duration
	Limit  int
}

func NewIndexer(endpoint string, store Store, log *zap.Logger) *Indexer {
	return &Indexer{
		endpoint:   endpoint,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
		Window:     24 * time.Hour,
		Limit:      500,
	}
}

// IndexRecent pushes the latest updates to the index. Retries are a bounded
// explicit loop; the attempt count and termination are auditable.
func (ix *Indexer) IndexRecent(ctx context.Context) (int, error) {
	tenders, err := ix.store.RecentlyUpdatedTenders(ctx, time.Now().Add(-ix.Window), ix.Limit)
	if err != nil {
		return 0, fmt.Errorf("load recently updated tenders: %w", err)
	}
	if len(tenders) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(map[string]interface{}{"documents": tenders})
	if err != nil {
		return 0, fmt.Errorf("encode index payload: %w", err)
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * time.Second
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = ix.push(ctx, body)
		if lastErr == nil {
			return len(tenders), nil
		}
		ix.log.Warn("index push attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}
	return 0, fmt.Errorf("index push failed after %d attempts: %w", maxAttempts, lastErr)
}

func (ix *Indexer) push(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ix.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ix.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("index endpoint returned %d", resp.StatusCode)
	}
	return nil
}
