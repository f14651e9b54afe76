package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/amishk599/jobwatch/internal/model"
)

// RetryFetcher is a decorator that retries transient page failures with
// exponential backoff and jitter before giving up on the page.
type RetryFetcher struct {
	inner      model.PageFetcher
	name       string
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetryFetcher wraps a PageFetcher with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetryFetcher(inner model.PageFetcher, name string, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryFetcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryFetcher{
		inner:      inner,
		name:       name,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// FetchPage fetches one page, retrying on transient errors.
func (f *RetryFetcher) FetchPage(ctx context.Context, page int) (model.Page, error) {
	policy := retrypolicy.NewBuilder[model.Page]().
		HandleIf(func(_ model.Page, err error) bool { return isRetryable(err) }).
		WithMaxRetries(f.maxRetries).
		WithDelayFunc(func(exec failsafe.ExecutionAttempt[model.Page]) time.Duration {
			return f.backoffDelay(exec.Attempts(), exec.LastError())
		}).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[model.Page]) {
			f.logger.Warn("retrying after transient error",
				"source", f.name,
				"page", page,
				"attempt", e.Attempts(),
				"max_retries", f.maxRetries,
				"error", e.LastError(),
			)
		}).
		Build()

	p, err := failsafe.With[model.Page](policy).WithContext(ctx).Get(func() (model.Page, error) {
		return f.inner.FetchPage(ctx, page)
	})
	if err != nil && ctx.Err() != nil {
		return model.Page{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
	}
	return p, err
}

// backoffDelay computes the delay after the given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (f *RetryFetcher) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := f.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation: never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}

	// Non-HTTP errors (network, DNS, render timeouts) are retryable.
	return true
}

var _ model.PageFetcher = (*RetryFetcher)(nil)
