// Package mux provides the core in-process agent message routing engine.
//
// # Reading Guide
//
// Start with these three files to understand the routing kernel:
//   - message.go: Message lifecycle (created → routed → handled) and the metadata bag
//   - rules.go: Priority-ordered routing rules with deterministic tie-breaking
//   - router.go: Rule evaluation, agent selection, and pipeline invocation
//
// # Architecture
//
// The mux package defines the data model, the rule engine, the agent
// registry, and the middleware pipeline; the middleware family lives in
// sub-packages:
//   - mux/middleware/: validation, caching, rate limiting, retry, metrics,
//     analytics, batching, A/B assignment, feature flags, health-aware
//     rerouting, workflow orchestration, tracing
//   - mux/trace/: span records, the span collector, and the text exporter
//
// # Key Interfaces
//
// The extension points are single-method or small interfaces:
//   - Agent: capability checks plus the terminal Handle operation
//   - Handler / Middleware: the pipeline composition shapes
//   - Clock: injectable time source for every time-dependent middleware
//   - StateStore: keyed in-memory state for testability
//
// A Router is assembled from a RouterBuilder; each Build call produces a
// fresh Router wired to a registry, a rule engine, and a pipeline.
package mux
