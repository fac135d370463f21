package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agent-mux/agent-mux/mux"
)

// rateRecord is the per-sender sliding window.
type rateRecord struct {
	windowStart time.Time
	timestamps  []time.Time
}

// RateLimitMiddleware enforces a per-sender sliding-window limit. The
// check-and-record step is atomic under one mutex so that of N
// concurrent calls from a sender exactly min(N, maxRequests) pass.
// A failed downstream result does not refund the recorded slot.
type RateLimitMiddleware struct {
	mu          sync.Mutex
	store       mux.StateStore
	maxRequests int
	window      time.Duration
	clock       mux.Clock
}

// NewRateLimit creates a rate limiter allowing maxRequests per window per
// sender. A nil store gets a fresh MemoryStore; the empty sender id is a
// valid key.
func NewRateLimit(maxRequests int, window time.Duration, clock mux.Clock, store mux.StateStore) *RateLimitMiddleware {
	if clock == nil {
		clock = mux.SystemClock()
	}
	if store == nil {
		store = mux.NewMemoryStore()
	}
	return &RateLimitMiddleware{
		store:       store,
		maxRequests: maxRequests,
		window:      window,
		clock:       clock,
	}
}

// Middleware returns the pipeline function.
func (r *RateLimitMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		if !r.allow(msg.SenderID) {
			return mux.Fail(fmt.Sprintf(
				"Rate limit exceeded for sender %q: %d requests in %s",
				msg.SenderID, r.maxRequests, r.window)), nil
		}
		return next(ctx, msg)
	}
}

// allow drops expired timestamps, then either records now and admits the
// call or rejects it. The whole step runs under the mutex; exactness
// under bursts depends on it.
func (r *RateLimitMiddleware) allow(senderID string) bool {
	now := r.clock.Now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	var rec *rateRecord
	if v, ok := r.store.Get(senderID); ok {
		rec = v.(*rateRecord)
	} else {
		rec = &rateRecord{windowStart: now}
		r.store.Set(senderID, rec)
	}

	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept

	if len(rec.timestamps) >= r.maxRequests {
		return false
	}
	rec.timestamps = append(rec.timestamps, now)
	return true
}

// Pending returns the live request count inside the window for a sender.
func (r *RateLimitMiddleware) Pending(senderID string) int {
	now := r.clock.Now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.store.Get(senderID)
	if !ok {
		return 0
	}
	rec := v.(*rateRecord)
	n := 0
	for _, ts := range rec.timestamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
