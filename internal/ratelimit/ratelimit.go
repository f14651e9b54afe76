package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/jobwatch/internal/model"
)

// BackendLimiter enforces a minimum delay between requests to the same
// backend. Sources sharing a backend (two greenhouse boards, say) share
// its budget.
type BackendLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	delays   map[string]time.Duration
	minDelay time.Duration
}

// NewBackendLimiter creates a limiter that enforces minDelay between
// consecutive requests to the same backend unless SetDelay overrides it.
func NewBackendLimiter(minDelay time.Duration) *BackendLimiter {
	return &BackendLimiter{
		lastCall: make(map[string]time.Time),
		delays:   make(map[string]time.Duration),
		minDelay: minDelay,
	}
}

// SetDelay raises the delay for backend to d. A lower value than one
// already configured is ignored, so the politest source wins.
func (r *BackendLimiter) SetDelay(backend string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > r.delays[backend] {
		r.delays[backend] = d
	}
}

func (r *BackendLimiter) delayFor(backend string) time.Duration {
	if d, ok := r.delays[backend]; ok && d > r.minDelay {
		return d
	}
	return r.minDelay
}

// Wait blocks until enough time has passed since the last request to backend.
// Returns an error if the context is cancelled while waiting.
func (r *BackendLimiter) Wait(ctx context.Context, backend string) error {
	r.mu.Lock()
	last, ok := r.lastCall[backend]
	now := time.Now()
	delay := r.delayFor(backend)

	if !ok || now.Sub(last) >= delay {
		r.lastCall[backend] = now
		r.mu.Unlock()
		return nil
	}

	remaining := delay - now.Sub(last)
	// Reserve the slot so a concurrent caller queues behind this one.
	r.lastCall[backend] = now.Add(remaining)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", backend, ctx.Err())
	case <-time.After(remaining):
	}
	return nil
}

// RateLimitedFetcher is a decorator that waits for the backend limiter
// before every page request.
type RateLimitedFetcher struct {
	inner   model.PageFetcher
	limiter *BackendLimiter
	backend string
}

// NewRateLimitedFetcher wraps a PageFetcher with backend-level rate limiting.
// All fetchers targeting the same backend should share the same limiter.
func NewRateLimitedFetcher(inner model.PageFetcher, limiter *BackendLimiter, backend string) *RateLimitedFetcher {
	return &RateLimitedFetcher{
		inner:   inner,
		limiter: limiter,
		backend: backend,
	}
}

// FetchPage waits for the limiter, then delegates to the wrapped fetcher.
func (f *RateLimitedFetcher) FetchPage(ctx context.Context, page int) (model.Page, error) {
	if err := f.limiter.Wait(ctx, f.backend); err != nil {
		return model.Page{}, err
	}
	return f.inner.FetchPage(ctx, page)
}

var _ model.PageFetcher = (*RateLimitedFetcher)(nil)
