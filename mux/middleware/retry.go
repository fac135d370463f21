package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agent-mux/agent-mux/mux"
)

// attemptBackOff escalates linearly with the attempt number: the wait
// after attempt k is base × k. It implements backoff.BackOff so the
// schedule is swappable and testable in isolation.
type attemptBackOff struct {
	base    time.Duration
	attempt int
	max     int
}

var _ backoff.BackOff = (*attemptBackOff)(nil)

// NextBackOff returns the next delay, or backoff.Stop once all waits
// between attempts are spent.
func (b *attemptBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt >= b.max {
		return backoff.Stop
	}
	return b.base * time.Duration(b.attempt)
}

// Reset rewinds the schedule for the next message.
func (b *attemptBackOff) Reset() { b.attempt = 0 }

// RetryMiddleware re-invokes the downstream handler on failure, with a
// bounded number of attempts and an escalating backoff between them.
// Failed results and handler errors both trigger a retry; cancellation
// never does — it propagates unchanged, including when it arrives during
// a backoff sleep. When every attempt fails, the last failed Result is
// returned; when the last attempt returned an error, it is converted to
// a failed Result.
type RetryMiddleware struct {
	maxAttempts int
	baseDelay   time.Duration
	clock       mux.Clock
}

// NewRetry creates a retry middleware. maxAttempts below 1 is treated as
// 1 (no retries); a zero baseDelay retries immediately.
func NewRetry(maxAttempts int, baseDelay time.Duration, clock mux.Clock) *RetryMiddleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if clock == nil {
		clock = mux.SystemClock()
	}
	return &RetryMiddleware{maxAttempts: maxAttempts, baseDelay: baseDelay, clock: clock}
}

// Middleware returns the pipeline function.
func (r *RetryMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		bo := &attemptBackOff{base: r.baseDelay, max: r.maxAttempts}

		var lastRes *mux.Result
		var lastErr error
		for attempt := 1; attempt <= r.maxAttempts; attempt++ {
			res, err := next(ctx, msg)
			if err == nil && res != nil && res.Success {
				return res, nil
			}
			if isCancellation(err) {
				return nil, err
			}
			lastRes, lastErr = res, err

			delay := bo.NextBackOff()
			if delay == backoff.Stop {
				break
			}
			if delay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-r.clock.After(delay):
				}
			}
		}

		if lastErr != nil {
			return mux.Fail(fmt.Sprintf("Failed after %d attempts: %v", r.maxAttempts, lastErr)), nil
		}
		return lastRes, nil
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
