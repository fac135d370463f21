package trace

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexOnly = regexp.MustCompile(`^[0-9a-f]+$`)

func TestNewTraceID_Is32Hex(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTraceID()
		require.Len(t, id, 32)
		assert.Regexp(t, hexOnly, id)
		assert.False(t, seen[id], "trace ids must be unique")
		seen[id] = true
	}
}

func TestNewSpanID_Is16Hex(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSpanID()
		require.Len(t, id, 16)
		assert.Regexp(t, hexOnly, id)
		assert.False(t, seen[id], "span ids must be unique")
		seen[id] = true
	}
}

func TestCollector_SnapshotIsACopy(t *testing.T) {
	c := NewCollector()
	c.Record(Span{TraceID: "t1", SpanID: "s1"})

	snap := c.Spans()
	c.Record(Span{TraceID: "t2", SpanID: "s2"})

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, c.Len())
}

func TestCollector_ConcurrentAppend(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(Span{TraceID: NewTraceID(), SpanID: NewSpanID()})
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, c.Len())
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector()
	c.Record(Span{})
	c.Reset()
	assert.Zero(t, c.Len())
}

func TestExportJaeger_GroupsByTraceInFirstSeenOrder(t *testing.T) {
	spans := []Span{
		{TraceID: "aaaa", SpanID: "1", OperationName: "ProcessMessage: one", Duration: 2 * time.Millisecond, Success: true},
		{TraceID: "bbbb", SpanID: "2", OperationName: "ProcessMessage: two", Duration: 7 * time.Millisecond, Success: false},
		{TraceID: "aaaa", SpanID: "3", ParentSpanID: "1", OperationName: "ProcessMessage: three", Duration: 1 * time.Millisecond, Success: true},
	}

	want := "Jaeger Trace Export:\n" +
		"Trace ID: aaaa\n" +
		"Span: ProcessMessage: one, Duration: 2ms, Success: True\n" +
		"  → Span: ProcessMessage: three, Duration: 1ms, Success: True\n" +
		"Trace ID: bbbb\n" +
		"Span: ProcessMessage: two, Duration: 7ms, Success: False\n"
	assert.Equal(t, want, ExportJaeger(spans))
}

func TestExportJaeger_EmptySpans(t *testing.T) {
	assert.Equal(t, "Jaeger Trace Export:\n", ExportJaeger(nil))
}

func TestSpan_Tags(t *testing.T) {
	var s Span
	assert.Empty(t, s.Tag("missing"))
	s.SetTag("k", "v")
	assert.Equal(t, "v", s.Tag("k"))
}
