package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"propvalue/internal/adapters/upstream"
	"propvalue/internal/domain"
)

func TestAreaStats_Crime_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			w.WriteHeader(200)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"data":   map[string]any{"population": 1200.0, "total_crimes": 42.0},
			})
		}
	}))
	defer ts.Close()

	cl, err := upstream.NewAreaStats(ts.URL, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := cl.Crime(ctx, "SW1A 1AA")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n, ok := got["total_crimes"].(float64); !ok || n != 42 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestAreaStats_FallsBackToLegacyPath(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != "/epc" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("postcode") != "EC1A 1BB" {
			t.Errorf("postcode query: %q", r.URL.Query().Get("postcode"))
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "data": map[string]any{"rating": "C"}})
	}))
	defer ts.Close()

	cl, _ := upstream.NewAreaStats(ts.URL, "test-key", 100)
	got, err := cl.EPC(context.Background(), "EC1A 1BB")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got["rating"] != "C" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if len(paths) != 2 {
		t.Fatalf("expected preferred then legacy path, got %v", paths)
	}
}

func TestAreaStats_NegativeStatusIsNoData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "message": "postcode not covered"})
	}))
	defer ts.Close()

	cl, _ := upstream.NewAreaStats(ts.URL, "test-key", 100)
	_, err := cl.Demographics(context.Background(), "ZZ99 9ZZ")
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestAreaStats_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl, err := upstream.NewAreaStats(ts.URL, "test-key", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = cl.Article4(ctx, "SW1A 1AA")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAreaStats_PersistentOutageIsUnavailable(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cl, _ := upstream.NewAreaStats(ts.URL, "test-key", 100)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := cl.PropertyDetails(ctx, "SW1A 1AA")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 4 {
		t.Fatalf("expected 4 attempts, got %d", n)
	}
}

func TestAreaStats_UnauthorizedIsNotRetried(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	cl, _ := upstream.NewAreaStats(ts.URL, "test-key", 100)
	_, err := cl.EPC(context.Background(), "SW1A 1AA")
	if !errors.Is(err, upstream.ErrUnauthorized) || !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestFeed_FetchListings_Wrapped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("page: %q", r.URL.Query().Get("page"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"listings": []any{
				map[string]any{"AGENT_REF": "A1"},
				"not-a-record",
				map[string]any{"AGENT_REF": "A2"},
			},
		})
	}))
	defer ts.Close()

	cl, _ := upstream.NewFeed(ts.URL, "test-key", 100)
	recs, err := cl.FetchListings(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(recs) != 2 || recs[1]["AGENT_REF"] != "A2" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := upstream.New("feed", "http://example.invalid", "", 1); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
