package locator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const storeBody = `{"observations":[{"id":"a","lat":39.8,"lng":-121.6,"azimuth":90},{"id":"b","lat":39.9,"lng":-121.5,"azimuth":180}]}`

// newTestStoreClient returns a client for url with millisecond backoff.
func newTestStoreClient(url string, attempts int) *StoreClient {
	c := NewStoreClient(StoreConfig{URL: url, Attempts: attempts})
	c.backoff = time.Millisecond
	return c
}

func TestStoreClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept: application/json, got %q", r.Header.Get("Accept"))
		}
		if r.URL.RawQuery != "" {
			t.Errorf("unbounded fetch sent query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(storeBody))
	}))
	defer srv.Close()

	records, err := newTestStoreClient(srv.URL, 1).Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[1].ID() != "b" {
		t.Errorf("second record id = %q, want b", records[1].ID())
	}
}

func TestStoreClient_FetchSendsBounds(t *testing.T) {
	var gotSW, gotNE, gotSource string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotSW, gotNE, gotSource = q.Get("sw"), q.Get("ne"), q.Get("source")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	bounds := &Bounds{
		SouthWest: LatLon{Lat: 39.5, Lon: -122},
		NorthEast: LatLon{Lat: 40.25, Lon: -121.125},
	}
	if _, err := newTestStoreClient(srv.URL+"/sightings?source=lookout", 1).Fetch(context.Background(), bounds); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if gotSW != "39.5,-122" {
		t.Errorf("sw = %q, want 39.5,-122", gotSW)
	}
	if gotNE != "40.25,-121.125" {
		t.Errorf("ne = %q, want 40.25,-121.125", gotNE)
	}
	if gotSource != "lookout" {
		t.Errorf("existing query parameter lost: source = %q", gotSource)
	}
}

func TestStoreClient_RequestURLRoundTripsThroughParseBounds(t *testing.T) {
	bounds := &Bounds{SouthWest: LatLon{Lat: -33.9, Lon: 18.4}, NorthEast: LatLon{Lat: -33.8, Lon: 18.6}}
	target, err := NewStoreClient(StoreConfig{URL: "http://store/obs"}).RequestURL(bounds)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, target, nil)
	parsed, err := ParseBounds(req.URL.Query().Get("sw"), req.URL.Query().Get("ne"))
	if err != nil {
		t.Fatalf("ParseBounds(%s): %v", target, err)
	}
	if *parsed != *bounds {
		t.Errorf("round trip = %+v, want %+v", *parsed, *bounds)
	}
}

func TestStoreClient_EmptyURL(t *testing.T) {
	_, err := NewStoreClient(StoreConfig{}).Fetch(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "store URL is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStoreClient_InvalidPayloadNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := newTestStoreClient(srv.URL, 3).Fetch(context.Background(), nil); err == nil {
		t.Fatal("expected error for invalid payload")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1", got)
	}
}

func TestStoreClient_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(storeBody))
	}))
	defer srv.Close()

	records, err := newTestStoreClient(srv.URL, 3).Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestStoreClient_StatusRetryPolicy(t *testing.T) {
	tests := []struct {
		status    int
		wantCalls int32
	}{
		{http.StatusInternalServerError, 3},
		{http.StatusTooManyRequests, 3},
		{http.StatusRequestTimeout, 3},
		{http.StatusNotFound, 1},
		{http.StatusUnauthorized, 1},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestStoreClient(srv.URL, 3).Fetch(context.Background(), nil)
			var se *storeStatusError
			if !errors.As(err, &se) || se.Status != tt.status {
				t.Fatalf("err = %v, want status %d", err, tt.status)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server called %d times, want %d", got, tt.wantCalls)
			}
			if !strings.Contains(err.Error(), "attempt(s)") {
				t.Errorf("error does not report attempts: %v", err)
			}
		})
	}
}

func TestStoreClient_DefaultsApplied(t *testing.T) {
	c := NewStoreClient(StoreConfig{URL: "http://store", Attempts: -1})
	if c.attempts != DefaultStoreAttempts {
		t.Errorf("attempts = %d, want %d", c.attempts, DefaultStoreAttempts)
	}
	if c.http.Timeout != DefaultStoreTimeout {
		t.Errorf("timeout = %v, want %v", c.http.Timeout, DefaultStoreTimeout)
	}
}

func TestStoreClient_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := newTestStoreClient(srv.URL, 5)
	c.backoff = time.Minute

	start := time.Now()
	_, err := c.Fetch(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("fetch took %v after cancellation", elapsed)
	}
}

func TestStoreClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewStoreClient(StoreConfig{URL: srv.URL, Timeout: 20 * time.Millisecond, Attempts: 1})
	if _, err := c.Fetch(context.Background(), nil); err == nil {
		t.Fatal("expected timeout error")
	}
}
