package trace

import (
	"fmt"
	"strings"
)

// ExportJaeger renders spans as the fixed-format text report. Spans are
// grouped by trace id in first-seen order; within a trace, spans keep
// record order. Child spans (non-empty ParentSpanID) are indented with
// two spaces and a "→ " prefix.
//
//	Jaeger Trace Export:
//	Trace ID: 4bf92f3577b34da6a3ce929d0e0e4736
//	Span: ProcessMessage: hello, Duration: 3ms, Success: True
//	  → Span: ProcessMessage: hello again, Duration: 1ms, Success: True
func ExportJaeger(spans []Span) string {
	var b strings.Builder
	b.WriteString("Jaeger Trace Export:\n")

	var order []string
	byTrace := make(map[string][]Span)
	for _, s := range spans {
		if _, seen := byTrace[s.TraceID]; !seen {
			order = append(order, s.TraceID)
		}
		byTrace[s.TraceID] = append(byTrace[s.TraceID], s)
	}

	for _, traceID := range order {
		fmt.Fprintf(&b, "Trace ID: %s\n", traceID)
		for _, s := range byTrace[traceID] {
			prefix := ""
			if s.ParentSpanID != "" {
				prefix = "  → "
			}
			fmt.Fprintf(&b, "%sSpan: %s, Duration: %dms, Success: %s\n",
				prefix, s.OperationName, s.Duration.Milliseconds(), boolTag(s.Success))
		}
	}
	return b.String()
}
