package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/agent-mux/agent-mux/mux"
)

// maxLatencySamples bounds the circular sample buffer.
const maxLatencySamples = 10_000

// MetricsSnapshot is an immutable view of the counters and the latency
// statistics over the sample buffer.
type MetricsSnapshot struct {
	TotalMessages           int64
	SuccessCount            int64
	FailureCount            int64
	SuccessRate             float64
	AverageProcessingTimeMs float64
	MinProcessingTimeMs     float64
	MaxProcessingTimeMs     float64
}

// MetricsMiddleware tracks totals, success/failure counts, and
// min/max/avg processing time over a bounded circular buffer of the last
// 10 000 latency samples. Counters are unbounded. A handler error is not
// caught — it propagates — but its sample and total are still recorded,
// so success+failure never exceeds total.
type MetricsMiddleware struct {
	mu      sync.Mutex
	total   int64
	success int64
	failure int64

	samples []time.Duration
	nextIdx int
	filled  bool

	clock mux.Clock
}

// NewMetrics creates a metrics middleware on the given clock.
func NewMetrics(clock mux.Clock) *MetricsMiddleware {
	if clock == nil {
		clock = mux.SystemClock()
	}
	return &MetricsMiddleware{
		samples: make([]time.Duration, 0, maxLatencySamples),
		clock:   clock,
	}
}

// Middleware returns the pipeline function.
func (m *MetricsMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		start := m.clock.Now()
		res, err := next(ctx, msg)
		elapsed := m.clock.Now().Sub(start)

		m.mu.Lock()
		m.total++
		m.record(elapsed)
		switch {
		case err != nil:
			// sample recorded, neither counter moves; the error propagates
		case res != nil && res.Success:
			m.success++
		default:
			m.failure++
		}
		m.mu.Unlock()

		return res, err
	}
}

// record appends a sample to the ring, overwriting the oldest once full.
// Callers hold m.mu.
func (m *MetricsMiddleware) record(d time.Duration) {
	if len(m.samples) < maxLatencySamples {
		m.samples = append(m.samples, d)
		return
	}
	m.filled = true
	m.samples[m.nextIdx] = d
	m.nextIdx = (m.nextIdx + 1) % maxLatencySamples
}

// Snapshot returns an internally consistent view: counts and samples are
// read under the same lock, so total == success + failure holds whenever
// no handler errored.
func (m *MetricsMiddleware) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		TotalMessages: m.total,
		SuccessCount:  m.success,
		FailureCount:  m.failure,
	}
	if m.total > 0 {
		snap.SuccessRate = float64(m.success) / float64(m.total)
	}
	if len(m.samples) == 0 {
		return snap
	}

	minD, maxD := m.samples[0], m.samples[0]
	var sum time.Duration
	for _, d := range m.samples {
		if d < minD {
			minD = d
		}
		if d > maxD {
			maxD = d
		}
		sum += d
	}
	n := float64(len(m.samples))
	snap.AverageProcessingTimeMs = float64(sum.Microseconds()) / 1000.0 / n
	snap.MinProcessingTimeMs = float64(minD.Microseconds()) / 1000.0
	snap.MaxProcessingTimeMs = float64(maxD.Microseconds()) / 1000.0
	return snap
}
