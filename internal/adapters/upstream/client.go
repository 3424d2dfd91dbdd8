// internal/adapters/upstream/client.go
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"propvalue/internal/adapters/observability"
	"propvalue/internal/domain"
)

// Client is a rate-limited JSON client for one upstream service.
type Client struct {
	service string
	base    string
	hc      *http.Client
	key     string
	rl      *rate.Limiter
}

func New(service, base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("%s: API key is required", service)
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		service: service,
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{Timeout: 20 * time.Second},
		key:     key,
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Internals ----

const maxAttempts = 4

var (
	ErrNotFound     = fmt.Errorf("upstream: %w", domain.ErrNotFound)
	ErrUnauthorized = fmt.Errorf("upstream: unauthorized: %w", domain.ErrUpstreamUnavailable)
	ErrForbidden    = fmt.Errorf("upstream: forbidden: %w", domain.ErrUpstreamUnavailable)
)

// getFirst tries each candidate path in order, moving on only after a 404.
func (c *Client) getFirst(ctx context.Context, endpoint string, paths []string, out any) error {
	err := ErrNotFound
	for _, p := range paths {
		if err = c.get(ctx, endpoint, c.base+p, out); !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return err
}

// retryable marks a failed attempt that may succeed if repeated.
type retryable struct {
	err  error
	wait time.Duration // server hint; 0 means use backoff
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

// get performs a rate-limited GET and decodes the JSON body into out.
// 429, transient 5xx and transport errors are retried with backoff; once
// attempts run out the failure is reported as ErrUpstreamUnavailable.
func (c *Client) get(ctx context.Context, endpoint, url string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	status := 0
	defer func() { observability.ObserveExternal(c.service, endpoint, status, time.Since(start)) }()

	var last error
	for i := 0; i < maxAttempts; i++ {
		var err error
		status, err = c.attempt(ctx, url, out)
		var rt *retryable
		if !errors.As(err, &rt) {
			return err
		}
		last = rt.err
		wait := rt.wait
		if wait == 0 {
			wait = backoff(i)
		}
		if i == maxAttempts-1 || !sleepCtx(ctx, wait) {
			break
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s %s after %d attempts: %v", domain.ErrUpstreamUnavailable, c.service, endpoint, maxAttempts, last)
}

// attempt issues one request and returns the HTTP status (0 on transport
// failure) together with the classified outcome.
func (c *Client) attempt(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-API-Key", c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "propvalue/1.0")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &retryable{err: err}
	}
	defer resp.Body.Close()
	return resp.StatusCode, classify(resp, out)
}

func classify(resp *http.Response, out any) error {
	switch code := resp.StatusCode; {
	case code == http.StatusNoContent:
		return nil
	case code >= 200 && code < 300:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed response body: %v", domain.ErrUpstreamUnavailable, err)
		}
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusTooManyRequests, code == http.StatusInternalServerError,
		code == http.StatusBadGateway, code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &retryable{err: fmt.Errorf("remote %d", code), wait: retryAfter(resp.Header.Get("Retry-After"))}
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: bad status %d: %s", domain.ErrUpstreamUnavailable, code, strings.TrimSpace(string(b)))
	}
}

func escape(s string) string { return url.PathEscape(s) }

func query(s string) string { return url.QueryEscape(s) }

// sleepCtx reports whether d elapsed before ctx was done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter reads a Retry-After value in seconds or as an HTTP date.
func retryAfter(h string) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}

// backoff is 200ms doubling per attempt plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := 200 * time.Millisecond << i
	return base + rand.N(base/2)
}
