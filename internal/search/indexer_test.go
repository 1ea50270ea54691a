package search_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tendersync/db"
	"tendersync/internal/search"
)

type recentStore struct {
	tenders []db.Tender
	err     error
	since   time.Time
}

func (s *recentStore) RecentlyUpdatedTenders(ctx context.Context, since time.Time, limit int) ([]db.Tender, error) {
	s.since = since
	return s.tenders, s.err
}

func makeTenders(n int) []db.Tender {
	tenders := make([]db.Tender, n)
	for i := range tenders {
		tenders[i] = db.Tender{OCID: fmt.Sprintf("ocds-%d", i), Title: "t"}
	}
	return tenders
}

func TestIndexRecentPushesDocuments(t *testing.T) {
	var gotBody struct {
		Documents []db.Tender `json:"documents"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	t.Cleanup(srv.Close)

	ix := search.NewIndexer(srv.URL, &recentStore{tenders: makeTenders(3)}, zap.NewNop())

	indexed, err := ix.IndexRecent(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, indexed)
	require.Len(t, gotBody.Documents, 3)
}

func TestIndexRecentSkipsWhenNothingChanged(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	t.Cleanup(srv.Close)

	ix := search.NewIndexer(srv.URL, &recentStore{}, zap.NewNop())

	indexed, err := ix.IndexRecent(context.Background())
	require.NoError(t, err)
	require.Zero(t, indexed)
	require.Zero(t, calls, "no push when there is nothing to index")
}

func TestIndexRecentRetriesBounded(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	ix := search.NewIndexer(srv.URL, &recentStore{tenders: makeTenders(1)}, zap.NewNop())

	_, err := ix.IndexRecent(context.Background())
	require.Error(t, err)
	require.EqualValues(t, 3, calls, "exactly three attempts, then give up")
}

func TestIndexRecentStoreFailure(t *testing.T) {
	ix := search.NewIndexer("http://127.0.0.1:0", &recentStore{err: errors.New("db down")}, zap.NewNop())

	_, err := ix.IndexRecent(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "db down")
}
