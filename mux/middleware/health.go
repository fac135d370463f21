package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agent-mux/agent-mux/mux"
)

// healthEntry tracks one probed agent. Agents start healthy on
// registration.
type healthEntry struct {
	id      string
	healthy bool
	probe   func() (bool, error)
}

// AgentHealthCheckMiddleware probes registered agents on a periodic
// timer and reroutes messages addressed to an unhealthy agent to the
// first healthy one in registration order. With no healthy agent left it
// short-circuits with a failure. Messages for unregistered receivers
// pass through untouched.
type AgentHealthCheckMiddleware struct {
	mu      sync.Mutex
	entries []*healthEntry
	index   map[string]*healthEntry

	interval time.Duration
	clock    mux.Clock
	logger   logrus.FieldLogger

	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// NewAgentHealthCheck creates the middleware and starts its probe timer.
func NewAgentHealthCheck(interval time.Duration, clock mux.Clock, logger logrus.FieldLogger) *AgentHealthCheckMiddleware {
	if clock == nil {
		clock = mux.SystemClock()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &AgentHealthCheckMiddleware{
		index:    make(map[string]*healthEntry),
		interval: interval,
		clock:    clock,
		logger:   logger,
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go h.run()
	return h
}

// RegisterAgent adds an agent probe. The agent starts healthy;
// re-registering replaces the probe but keeps registration order.
func (h *AgentHealthCheckMiddleware) RegisterAgent(id string, probe func() (bool, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, ok := h.index[id]; ok {
		entry.probe = probe
		return
	}
	entry := &healthEntry{id: id, healthy: true, probe: probe}
	h.entries = append(h.entries, entry)
	h.index[id] = entry
}

// SetHealth overrides an agent's health state. Primarily a testing hook,
// replacing the reflection-based access the original harness used.
func (h *AgentHealthCheckMiddleware) SetHealth(id string, healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, ok := h.index[id]; ok {
		entry.healthy = healthy
	}
}

// HealthStatus returns a defensive copy of the known health states.
func (h *AgentHealthCheckMiddleware) HealthStatus() map[string]bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]bool, len(h.entries))
	for _, e := range h.entries {
		out[e.id] = e.healthy
	}
	return out
}

// Middleware returns the pipeline function.
func (h *AgentHealthCheckMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		h.mu.Lock()
		entry, registered := h.index[msg.ReceiverID]
		if msg.ReceiverID == "" || !registered || entry.healthy {
			h.mu.Unlock()
			return next(ctx, msg)
		}

		// Receiver is unhealthy: reroute to the first healthy agent in
		// registration order.
		var target string
		for _, e := range h.entries {
			if e.healthy {
				target = e.id
				break
			}
		}
		h.mu.Unlock()

		if target == "" {
			return mux.Fail("No healthy agents available"), nil
		}
		h.logger.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"from":       msg.ReceiverID,
			"to":         target,
		}).Warn("rerouting message away from unhealthy agent")
		msg.ReceiverID = target
		return next(ctx, msg)
	}
}

// run probes all agents each interval tick until Close.
func (h *AgentHealthCheckMiddleware) run() {
	defer close(h.loopDone)
	for {
		select {
		case <-h.done:
			return
		case <-h.clock.After(h.interval):
			h.probeAll()
		}
	}
}

// probeAll invokes every probe, marking agents unhealthy when the probe
// reports false, returns an error, or panics.
func (h *AgentHealthCheckMiddleware) probeAll() {
	h.mu.Lock()
	entries := make([]*healthEntry, len(h.entries))
	copy(entries, h.entries)
	h.mu.Unlock()

	for _, entry := range entries {
		healthy := h.runProbe(entry)
		h.mu.Lock()
		entry.healthy = healthy
		h.mu.Unlock()
	}
}

func (h *AgentHealthCheckMiddleware) runProbe(entry *healthEntry) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			healthy = false
			h.logger.WithFields(logrus.Fields{
				"agent_id": entry.id,
				"panic":    r,
			}).Warn("health probe panicked; marking agent unhealthy")
		}
	}()
	if entry.probe == nil {
		return true
	}
	ok, err := entry.probe()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"agent_id": entry.id,
		}).WithError(err).Warn("health probe failed; marking agent unhealthy")
		return false
	}
	return ok
}

// Close stops the probe timer. Safe to call multiple times.
func (h *AgentHealthCheckMiddleware) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		<-h.loopDone
	})
	return nil
}
