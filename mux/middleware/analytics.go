package middleware

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agent-mux/agent-mux/mux"
)

// AnalyticsReport is a point-in-time copy of the analytics counters.
type AnalyticsReport struct {
	TotalMessages int64
	Categories    map[string]int64
	AgentWorkload map[string]int64
}

// AnalyticsMiddleware counts messages in total, per category, and per
// receiving agent. Category and receiver are recorded only when
// non-empty — strictly empty, a whitespace value still counts.
type AnalyticsMiddleware struct {
	mu         sync.Mutex
	total      int64
	categories map[string]int64
	workload   map[string]int64
}

// NewAnalytics creates an analytics middleware with zeroed counters.
func NewAnalytics() *AnalyticsMiddleware {
	return &AnalyticsMiddleware{
		categories: make(map[string]int64),
		workload:   make(map[string]int64),
	}
}

// Middleware returns the pipeline function. Counters move before the
// downstream handler runs, so short-circuits deeper in the chain still
// count the message as seen.
func (a *AnalyticsMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		a.mu.Lock()
		a.total++
		if msg.Category != "" {
			a.categories[msg.Category]++
		}
		if msg.ReceiverID != "" {
			a.workload[msg.ReceiverID]++
		}
		a.mu.Unlock()
		return next(ctx, msg)
	}
}

// GetReport returns a fresh snapshot of the counters.
func (a *AnalyticsMiddleware) GetReport() AnalyticsReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	report := AnalyticsReport{
		TotalMessages: a.total,
		Categories:    make(map[string]int64, len(a.categories)),
		AgentWorkload: make(map[string]int64, len(a.workload)),
	}
	for k, v := range a.categories {
		report.Categories[k] = v
	}
	for k, v := range a.workload {
		report.AgentWorkload[k] = v
	}
	return report
}

// GenerateReport renders the deterministic human-readable report:
// categories ordered by count descending (name ascending on ties) with
// percentages to one decimal, then per-agent workload.
func (a *AnalyticsMiddleware) GenerateReport() string {
	report := a.GetReport()

	var b strings.Builder
	b.WriteString("=== Message Analytics Report ===\n")
	fmt.Fprintf(&b, "Total Messages: %d\n", report.TotalMessages)

	b.WriteString("Categories:\n")
	for _, kv := range sortedCounts(report.Categories) {
		pct := 0.0
		if report.TotalMessages > 0 {
			pct = float64(kv.count) / float64(report.TotalMessages) * 100
		}
		fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", kv.name, kv.count, pct)
	}

	b.WriteString("Agent Workload:\n")
	for _, kv := range sortedCounts(report.AgentWorkload) {
		fmt.Fprintf(&b, "  %s: %d\n", kv.name, kv.count)
	}
	return b.String()
}

type countEntry struct {
	name  string
	count int64
}

func sortedCounts(m map[string]int64) []countEntry {
	entries := make([]countEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, countEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	return entries
}
