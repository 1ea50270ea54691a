package ocds_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tendersync/internal/ocds"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*ocds.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return ocds.NewClient(srv.URL, 10*time.Second, zap.NewNop()), srv
}

func releasesBody(n int) string {
	body := `{"releases":[`
	for i := 0; i < n; i++ {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"ocid":"ocds-%d","tender":{"title":"t%d"}}`, i, i)
	}
	return body + `]}`
}

func TestFetchReleasesRetriesThenSucceeds(t *testing.T) {
	var calls int32
	var timestamps []time.Time

	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		timestamps = append(timestamps, time.Now())
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, releasesBody(2))
	})

	releases, err := client.FetchReleases(context.Background(),
		time.Now().AddDate(0, -1, 0), time.Now(), 1, 10, 2)
	require.NoError(t, err)
	require.Len(t, releases, 2)
	require.EqualValues(t, 2, calls)

	// No immediate retries: the backoff floor is base minus jitter.
	require.GreaterOrEqual(t, timestamps[1].Sub(timestamps[0]), 500*time.Millisecond)
}

func TestFetchReleasesExhaustsRetryBudget(t *testing.T) {
	var calls int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FetchReleases(context.Background(),
		time.Now().AddDate(0, -1, 0), time.Now(), 1, 10, 2)
	require.Error(t, err)
	require.EqualValues(t, 2, calls)

	var statusErr *ocds.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestFetchReleasesNonRetryableShortCircuits(t *testing.T) {
	var calls int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchReleases(context.Background(),
		time.Now().AddDate(0, -1, 0), time.Now(), 1, 10, 3)
	require.Error(t, err)
	require.EqualValues(t, 1, calls, "a 404 must not consume the retry budget")
}

func TestFetchReleasesDNSFailureFailsFast(t *testing.T) {
	// RFC 2606 reserves .invalid, so resolution always fails. The DNS error
	// arrives wrapped in *url.Error and must still classify as permanent.
	client := ocds.NewClient("http://upstream.invalid", 10*time.Second, zap.NewNop())

	start := time.Now()
	_, err := client.FetchReleases(context.Background(),
		time.Now().AddDate(0, -1, 0), time.Now(), 1, 10, 5)
	elapsed := time.Since(start)

	require.Error(t, err)
	var dnsErr *net.DNSError
	require.ErrorAs(t, err, &dnsErr)

	// Four retries would spend at least two seconds in backoff alone.
	require.Less(t, elapsed, 2*time.Second,
		"a resolution failure must not consume the retry budget")
}

func TestFetchReleasesQueryParameters(t *testing.T) {
	var gotQuery map[string]string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"dateFrom":   r.URL.Query().Get("dateFrom"),
			"dateTo":     r.URL.Query().Get("dateTo"),
			"PageNumber": r.URL.Query().Get("PageNumber"),
			"PageSize":   r.URL.Query().Get("PageSize"),
		}
		fmt.Fprint(w, releasesBody(0))
	})

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	releases, err := client.FetchReleases(context.Background(), from, to, 3, 500, 1)
	require.NoError(t, err)
	require.Empty(t, releases)
	require.Equal(t, "2026-01-01", gotQuery["dateFrom"])
	require.Equal(t, "2026-06-01", gotQuery["dateTo"])
	require.Equal(t, "3", gotQuery["PageNumber"])
	require.Equal(t, "500", gotQuery["PageSize"])
}

func TestFetchReleasesMissingReleasesField(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"links":{}}`)
	})

	releases, err := client.FetchReleases(context.Background(),
		time.Now().AddDate(0, -1, 0), time.Now(), 1, 10, 1)
	require.NoError(t, err)
	require.Empty(t, releases, "a page without a releases field means end of data")
}

func TestFetchReleasesKeepsRawPayload(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"releases":[{"ocid":"ocds-raw-1","tender":{"title":"x"},"custom":{"nested":true}}]}`)
	})

	releases, err := client.FetchReleases(context.Background(),
		time.Now().AddDate(0, -1, 0), time.Now(), 1, 10, 1)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Contains(t, string(releases[0].Raw), `"nested":true`)
}

func TestFetchDocument(t *testing.T) {
	client, srv := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})

	resp, err := client.FetchDocument(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}
