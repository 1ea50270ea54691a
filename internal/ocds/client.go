package ocds

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// StatusError reports a non-2xx response from the upstream API.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Code, e.URL)
}

// Retryable reports whether the status is worth another attempt.
// 429 and 408 are throttling/timeout signals, 5xx is upstream trouble.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests ||
		e.Code == http.StatusRequestTimeout ||
		e.Code >= 500
}

// Client fetches paginated OCDS release records. It is stateless; retry
// bookkeeping lives entirely inside each call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// FetchReleases requests one page of releases for the date window. A missing
// or empty "releases" field means the query has no more data.
func (c *Client) FetchReleases(ctx context.Context, dateFrom, dateTo time.Time, pageNumber, pageSize, maxAttempts int) ([]Release, error) {
	q := url.Values{}
	q.Set("dateFrom", dateFrom.Format("2006-01-02"))
	q.Set("dateTo", dateTo.Format("2006-01-02"))
	q.Set("PageNumber", strconv.Itoa(pageNumber))
	q.Set("PageSize", strconv.Itoa(pageSize))
	reqURL := c.baseURL + "?" + q.Encode()

	var releases []Release
	err := retry.Do(ctx, c.backoff(maxAttempts, 10*time.Second), func(ctx context.Context) error {
		var err error
		releases, err = c.fetchPage(ctx, reqURL)
		return classify(err)
	})
	if err != nil {
		return nil, err
	}
	return releases, nil
}

func (c *Client) fetchPage(ctx context.Context, reqURL string) ([]Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, URL: reqURL}
	}

	// Decode each release twice: once into the typed subset the normalizer
	// reads and once kept raw for archival storage.
	var page struct {
		Releases []json.RawMessage `json:"releases"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode releases page: %w", err)
	}

	releases := make([]Release, 0, len(page.Releases))
	for _, raw := range page.Releases {
		var rel Release
		if err := json.Unmarshal(raw, &rel); err != nil {
			c.log.Warn("skipping malformed release", zap.Error(err))
			continue
		}
		rel.Raw = raw
		releases = append(releases, rel)
	}
	return releases, nil
}

// FetchDocument downloads a tender document with the routine retry budget.
// The caller owns the returned body.
func (c *Client) FetchDocument(ctx context.Context, docURL string) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(ctx, c.backoff(3, 10*time.Second), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
		if err != nil {
			return err
		}
		resp, err = c.httpClient.Do(req) //nolint:bodyclose // returned to caller on success
		if err != nil {
			return classify(err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return classify(&StatusError{Code: resp.StatusCode, URL: docURL})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) backoff(maxAttempts int, cap time.Duration) retry.Backoff {
	b := retry.NewExponential(1 * time.Second)
	b = retry.WithJitter(500*time.Millisecond, b)
	b = retry.WithCappedDuration(cap, b)
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return retry.WithMaxRetries(uint64(maxAttempts-1), b)
}

// classify wraps retryable failures for go-retry and lets permanent ones
// (client errors, DNS, TLS/certificate problems) fail the call immediately.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Retryable() {
			return retry.RetryableError(err)
		}
		return err
	}

	if isPermanentTransport(err) {
		return err
	}
	return retry.RetryableError(err)
}

func isPermanentTransport(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	return errors.As(err, &hostnameErr)
}
