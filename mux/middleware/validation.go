// Package middleware implements the cross-cutting middleware family for
// the mux routing engine: validation, logging, enrichment, priority
// boosting, timing, transformation, semantic category inference, caching,
// rate limiting, retry, metrics, analytics, batching, A/B assignment,
// feature flags, health-aware rerouting, workflow orchestration, and
// distributed tracing.
package middleware

import (
	"context"
	"strings"

	"github.com/agent-mux/agent-mux/mux"
)

// Validation rejects messages whose sender id, subject, or content are
// empty or whitespace-only. A rejected message short-circuits: the rest
// of the pipeline and the terminal handler never run.
func Validation() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		switch {
		case strings.TrimSpace(msg.SenderID) == "":
			return mux.Fail("message validation failed: sender id is required"), nil
		case strings.TrimSpace(msg.Subject) == "":
			return mux.Fail("message validation failed: subject is required"), nil
		case strings.TrimSpace(msg.Content) == "":
			return mux.Fail("message validation failed: content is required"), nil
		}
		return next(ctx, msg)
	}
}
