package resource

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
)

// * RateLimiter honours the backend's X-RateLimit-* and Retry-After headers
type RateLimiter struct {
	mu          sync.Mutex
	remaining   int
	reset       time.Time
	lowWarn     int
	retryAfter  time.Duration
	retryStatus int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		remaining:   -1,
		reset:       time.Now(),
		lowWarn:     10,
		retryStatus: http.StatusTooManyRequests,
	}
}

func (r *RateLimiter) pause() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.remaining == 0 && time.Now().Before(r.reset) {
		return time.Until(r.reset)
	}
	return 0
}

func (r *RateLimiter) waitIfNeeded(ctx context.Context) error {
	wait := r.pause()
	if wait <= 0 {
		return nil
	}

	logger.Warn("[RateLimiter] Rate limit exhausted. Waiting %v", wait)
	return sleep(ctx, wait)
}

func (r *RateLimiter) updateFromHeaders(headers http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining := headers.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			r.remaining = val
		}
	}

	if reset := headers.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.reset = time.Unix(val, 0)
		}
	}

	r.retryAfter = 0
	if retry := headers.Get("Retry-After"); retry != "" {
		if seconds, err := strconv.Atoi(retry); err == nil {
			r.retryAfter = time.Duration(seconds) * time.Second
		}
	}

	if r.remaining >= 0 && r.remaining < r.lowWarn {
		logger.Warn("[RateLimiter] Low rate limit: %d remaining. Resets at %s", r.remaining, r.reset.Format(time.RFC1123))
	}
}

func (r *RateLimiter) retryDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAfter
}

func (r *RateLimiter) Middleware(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if err := r.waitIfNeeded(req.Context()); err != nil {
			return nil, err
		}

		resp, err := next.RoundTrip(req)
		if err != nil {
			logger.Error("Network error in RoundTrip: %v", err)
			return nil, err
		}

		r.updateFromHeaders(resp.Header)

		// * Retry once on 429, requests carry no body so replaying is safe
		if resp.StatusCode == r.retryStatus {
			delay := r.retryDelay()
			resp.Body.Close()
			logger.Warn("[RateLimiter] Received 429. Retrying after %v...", delay)
			if err := sleep(req.Context(), delay); err != nil {
				return nil, err
			}

			resp, err = next.RoundTrip(req)
			if err != nil {
				logger.Error("Network error in RoundTrip retry: %v", err)
				return nil, err
			}
			r.updateFromHeaders(resp.Header)
		}

		return resp, nil
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
