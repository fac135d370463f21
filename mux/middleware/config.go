package middleware

import (
	"github.com/agent-mux/agent-mux/mux"
)

// Attachments holds the stateful middleware built from a config so
// callers can reach their operational surfaces (snapshots, reports,
// disposal) after attaching them to a builder.
type Attachments struct {
	Cache       *CachingMiddleware
	RateLimit   *RateLimitMiddleware
	Retry       *RetryMiddleware
	Metrics     *MetricsMiddleware
	Analytics   *AnalyticsMiddleware
	HealthCheck *AgentHealthCheckMiddleware
	Queue       *MessageQueueMiddleware
	Tracing     *DistributedTracingMiddleware
}

// Close releases the disposable middleware. Safe when sections were not
// configured.
func (a *Attachments) Close() error {
	if a.HealthCheck != nil {
		_ = a.HealthCheck.Close()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	return nil
}

// FromConfig attaches the middleware a config enables to the builder, in
// the family's conventional order: validation and logging outermost,
// then enrichment and boosting, then the stateful layers, tracing
// innermost so spans measure only the handler.
func FromConfig(cfg mux.MiddlewareConfig, b *mux.RouterBuilder) *Attachments {
	clock := b.Clock()
	logger := b.Logger()
	att := &Attachments{}

	if cfg.Validation {
		b.Use(Validation())
	}
	if cfg.Logging {
		b.Use(Logging(logger))
	}
	if cfg.Enrichment {
		b.Use(Enrichment(clock))
	}
	if len(cfg.VIPSenders) > 0 {
		b.Use(PriorityBoost(cfg.VIPSenders))
	}
	if cfg.RateLimit != nil {
		att.RateLimit = NewRateLimit(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window.Std(), clock, nil)
		b.Use(att.RateLimit.Middleware())
	}
	if cfg.Cache != nil {
		att.Cache = NewCaching(cfg.Cache.TTL.Std(), cfg.Cache.MaxEntries, clock)
		b.Use(att.Cache.Middleware())
	}
	if cfg.Retry != nil {
		att.Retry = NewRetry(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay.Std(), clock)
		b.Use(att.Retry.Middleware())
	}
	if cfg.Metrics {
		att.Metrics = NewMetrics(clock)
		b.Use(att.Metrics.Middleware())
	}
	if cfg.Analytics {
		att.Analytics = NewAnalytics()
		b.Use(att.Analytics.Middleware())
	}
	if cfg.HealthCheck != nil {
		att.HealthCheck = NewAgentHealthCheck(cfg.HealthCheck.Interval.Std(), clock, logger)
		b.Use(att.HealthCheck.Middleware())
	}
	if cfg.Queue != nil {
		att.Queue = NewMessageQueue(cfg.Queue.BatchSize, cfg.Queue.BatchTimeout.Std(), clock)
		b.Use(att.Queue.Middleware())
	}
	if cfg.Tracing != nil {
		name := cfg.Tracing.ServiceName
		if name == "" {
			name = "agent-mux"
		}
		att.Tracing = NewDistributedTracing(name, clock)
		b.Use(att.Tracing.Middleware())
	}

	return att
}
