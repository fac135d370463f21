// Package trace provides span records, the span collector, and the text
// exporter backing the distributed-tracing middleware.
package trace

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Span is one timed operation within a trace. ParentSpanID is empty for
// root spans.
type Span struct {
	TraceID       string // 32 hex chars
	SpanID        string // 16 hex chars
	ParentSpanID  string
	ServiceName   string
	OperationName string
	StartTime     time.Time
	Duration      time.Duration
	Success       bool
	Tags          map[string]string
}

// NewTraceID generates a 32-hex-char trace id.
func NewTraceID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// NewSpanID generates a 16-hex-char span id.
func NewSpanID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a uuid-derived id if random fails (should never happen)
		u := uuid.New()
		return hex.EncodeToString(u[:8])
	}
	return hex.EncodeToString(bytes)
}

// SetTag writes a tag, allocating the map on first use.
func (s *Span) SetTag(key, value string) {
	if s.Tags == nil {
		s.Tags = make(map[string]string)
	}
	s.Tags[key] = value
}

// Tag reads a tag, returning "" when absent.
func (s *Span) Tag(key string) string { return s.Tags[key] }

// boolTag renders a bool the way the export format spells it.
func boolTag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
