package locator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultStoreTimeout bounds a single request to the observation store.
	DefaultStoreTimeout = 30 * time.Second

	// DefaultStoreAttempts is how many times a store fetch is tried.
	DefaultStoreAttempts = 3

	defaultStoreBackoff = 500 * time.Millisecond

	// maxStoreResponse caps the store response body at 16 MB.
	maxStoreResponse = 16 << 20
)

// StoreClient reads observation records from a remote store over HTTP.
// Bounds passed to Fetch travel as sw/ne query parameters so the store can
// filter before sending; the estimator filters again on its side.
type StoreClient struct {
	url      string
	http     *http.Client
	attempts int
	backoff  time.Duration
}

// NewStoreClient builds a client from the store configuration. Zero
// timeout and attempts take the defaults.
func NewStoreClient(cfg StoreConfig) *StoreClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultStoreAttempts
	}
	return &StoreClient{
		url:      cfg.URL,
		http:     &http.Client{Timeout: timeout},
		attempts: attempts,
		backoff:  defaultStoreBackoff,
	}
}

// storeStatusError is a non-200 answer from the store.
type storeStatusError struct {
	Status int
}

func (e *storeStatusError) Error() string {
	return fmt.Sprintf("store answered status %d", e.Status)
}

// retryable reports whether another attempt could succeed. Client errors
// other than timeouts and rate limiting will not change on retry.
func retryable(err error) bool {
	var se *storeStatusError
	if !errors.As(err, &se) {
		return true
	}
	switch {
	case se.Status == http.StatusRequestTimeout, se.Status == http.StatusTooManyRequests:
		return true
	case se.Status >= 400 && se.Status < 500:
		return false
	}
	return true
}

// RequestURL returns the store URL with bounds encoded as sw/ne query
// parameters. Existing query parameters are kept.
func (c *StoreClient) RequestURL(bounds *Bounds) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parsing store URL: %w", err)
	}
	if bounds != nil {
		q := u.Query()
		q.Set("sw", formatLatLon(bounds.SouthWest))
		q.Set("ne", formatLatLon(bounds.NorthEast))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func formatLatLon(ll LatLon) string {
	return strconv.FormatFloat(ll.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(ll.Lon, 'f', -1, 64)
}

// Fetch returns the records the store holds inside bounds (all records when
// bounds is nil). Network failures, 5xx, 408 and 429 answers are retried
// with doubling delays; a payload that does not decode is returned at once.
func (c *StoreClient) Fetch(ctx context.Context, bounds *Bounds) ([]RawRecord, error) {
	if c.url == "" {
		return nil, fmt.Errorf("fetch records: store URL is empty")
	}
	target, err := c.RequestURL(bounds)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	delay := c.backoff
	var attempt int
	var lastErr error
	for attempt = 1; ; attempt++ {
		body, err := c.get(ctx, target)
		if err == nil {
			records, err := DecodeRecords(body)
			if err != nil {
				return nil, fmt.Errorf("fetch records: %w", err)
			}
			return records, nil
		}

		lastErr = err
		if !retryable(err) || attempt >= c.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch records: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("fetch records from %s after %d attempt(s): %w", c.url, attempt, lastErr)
}

func (c *StoreClient) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &storeStatusError{Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxStoreResponse))
}
