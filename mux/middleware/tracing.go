package middleware

import (
	"context"
	"fmt"

	"github.com/agent-mux/agent-mux/mux"
	"github.com/agent-mux/agent-mux/mux/trace"
)

// Metadata keys used for trace propagation.
const (
	MetaTraceID = "TraceId"
	MetaSpanID  = "SpanId"
)

// DistributedTracingMiddleware records a span per pipeline invocation.
// The trace id is reused from metadata when present, generated
// otherwise; an existing span id becomes the parent of the new span.
// On a downstream error the span is marked unsuccessful, tagged with the
// error, and the error re-raised.
type DistributedTracingMiddleware struct {
	collector   *trace.Collector
	serviceName string
	clock       mux.Clock
}

// NewDistributedTracing creates a tracing middleware recording into its
// own collector.
func NewDistributedTracing(serviceName string, clock mux.Clock) *DistributedTracingMiddleware {
	if clock == nil {
		clock = mux.SystemClock()
	}
	return &DistributedTracingMiddleware{
		collector:   trace.NewCollector(),
		serviceName: serviceName,
		clock:       clock,
	}
}

// Middleware returns the pipeline function.
func (t *DistributedTracingMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		traceID := msg.MetadataString(MetaTraceID)
		if traceID == "" {
			traceID = trace.NewTraceID()
		}
		parentSpanID := msg.MetadataString(MetaSpanID)
		spanID := trace.NewSpanID()

		msg.SetMetadata(MetaTraceID, traceID)
		msg.SetMetadata(MetaSpanID, spanID)

		span := trace.Span{
			TraceID:       traceID,
			SpanID:        spanID,
			ParentSpanID:  parentSpanID,
			ServiceName:   t.serviceName,
			OperationName: fmt.Sprintf("ProcessMessage: %s", msg.Subject),
			StartTime:     t.clock.Now(),
		}
		span.SetTag("message.id", msg.ID)
		span.SetTag("message.sender", msg.SenderID)
		span.SetTag("message.category", msg.Category)
		span.SetTag("message.priority", msg.Priority.String())

		res, err := next(ctx, msg)
		span.Duration = t.clock.Now().Sub(span.StartTime)

		if err != nil {
			span.Success = false
			span.SetTag("error.type", fmt.Sprintf("%T", err))
			span.SetTag("error.message", err.Error())
			span.SetTag("result.success", "False")
			t.collector.Record(span)
			return res, err
		}

		span.Success = res != nil && res.Success
		span.SetTag("result.success", boolString(span.Success))
		if res != nil && res.Error != "" {
			span.SetTag("error.message", res.Error)
		}
		t.collector.Record(span)
		return res, nil
	}
}

// GetTraces returns a snapshot copy of the recorded spans.
func (t *DistributedTracingMiddleware) GetTraces() []trace.Span {
	return t.collector.Spans()
}

// ExportJaegerFormat renders the recorded spans as the fixed-format text
// report.
func (t *DistributedTracingMiddleware) ExportJaegerFormat() string {
	return trace.ExportJaeger(t.collector.Spans())
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
