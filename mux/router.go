package mux

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// UnroutableFunc observes messages that could not be routed, with a
// human-readable reason.
type UnroutableFunc func(msg *Message, reason string)

// RoutedFunc observes successfully routed messages. fromAgent is the
// sender id (may be empty), toAgent the selected agent id.
type RoutedFunc func(msg *Message, fromAgent, toAgent string)

// Router orchestrates rule evaluation, agent selection, and pipeline
// invocation. Routers are safe for concurrent use; no ordering is
// guaranteed across concurrent Route calls.
type Router struct {
	engine   *RuleEngine
	registry *AgentRegistry
	pipeline *Pipeline
	logger   logrus.FieldLogger

	// defaultAgentID receives messages that match no rule. Empty means
	// unmatched messages are unroutable.
	defaultAgentID string

	mu             sync.Mutex
	ruleHits       map[string]int64
	unroutableSubs []UnroutableFunc
	routedSubs     []RoutedFunc
}

// NewRouter assembles a router from its collaborators. Nil engine,
// registry, or pipeline get fresh defaults; a nil logger falls back to
// the logrus standard logger. Most callers go through RouterBuilder.
func NewRouter(engine *RuleEngine, registry *AgentRegistry, pipeline *Pipeline, logger logrus.FieldLogger) *Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if engine == nil {
		engine = NewRuleEngine(true, logger)
	}
	if registry == nil {
		registry = NewAgentRegistry()
	}
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	return &Router{
		engine:   engine,
		registry: registry,
		pipeline: pipeline,
		logger:   logger,
		ruleHits: make(map[string]int64),
	}
}

// SetDefaultAgent configures the fallback agent for unmatched messages.
func (r *Router) SetDefaultAgent(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultAgentID = agentID
}

// RegisterAgent adds an agent to the registry.
func (r *Router) RegisterAgent(agent Agent) { r.registry.Register(agent) }

// UnregisterAgent removes an agent from the registry.
func (r *Router) UnregisterAgent(id string) bool { return r.registry.Unregister(id) }

// GetAgent looks up an agent by id.
func (r *Router) GetAgent(id string) (Agent, bool) { return r.registry.Get(id) }

// GetAllAgents returns a snapshot of the registered agents.
func (r *Router) GetAllAgents() []Agent { return r.registry.All() }

// GetAgentsByCapability returns agents with the given skill, ignoring case.
func (r *Router) GetAgentsByCapability(skill string) []Agent { return r.registry.ByCapability(skill) }

// AddRoutingRule adds or replaces a routing rule.
func (r *Router) AddRoutingRule(rule RoutingRule) { r.engine.AddRule(rule) }

// RemoveRoutingRule removes a routing rule by id.
func (r *Router) RemoveRoutingRule(id string) bool { return r.engine.RemoveRule(id) }

// Use appends a middleware to the pipeline. Route calls that are already
// in flight keep the chain they were built with.
func (r *Router) Use(mw Middleware) { r.pipeline.Use(mw) }

// OnUnroutable subscribes to unroutable-message events. Subscriber panics
// are recovered and logged; they never alter the returned Result.
func (r *Router) OnUnroutable(fn UnroutableFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unroutableSubs = append(r.unroutableSubs, fn)
}

// OnRouted subscribes to message-routed events, with the same isolation
// guarantees as OnUnroutable.
func (r *Router) OnRouted(fn RoutedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routedSubs = append(r.routedSubs, fn)
}

// RoutingMetrics returns a copy of the per-rule hit counters.
func (r *Router) RoutingMetrics() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.ruleHits))
	for k, v := range r.ruleHits {
		out[k] = v
	}
	return out
}

// Route evaluates the rule engine, selects the target agent, assigns the
// receiver, and invokes the pipeline with the agent's Handle as terminal.
// A failed Result flows back unchanged; handler errors propagate to the
// caller untranslated.
func (r *Router) Route(ctx context.Context, msg *Message) (*Result, error) {
	rctx := NewRoutingContext(msg)
	matches := r.engine.Evaluate(rctx)

	var targetID, ruleID string
	if len(matches) > 0 {
		targetID = matches[0].TargetAgentID
		ruleID = matches[0].ID
	} else {
		r.mu.Lock()
		targetID = r.defaultAgentID
		r.mu.Unlock()
		if targetID == "" {
			reason := "no routing rule matched"
			r.emitUnroutable(msg, reason)
			return Fail(fmt.Sprintf("No agent available: %s", reason)), nil
		}
	}

	agent, ok := r.registry.Get(targetID)
	if !ok {
		reason := fmt.Sprintf("agent %q not registered", targetID)
		r.emitUnroutable(msg, reason)
		return Fail(fmt.Sprintf("No agent available: %s", reason)), nil
	}

	msg.ReceiverID = targetID

	handler := r.pipeline.Build(agent.Handle)
	res, err := handler(ctx, msg)
	if err != nil {
		return nil, err
	}

	if ruleID != "" {
		r.mu.Lock()
		r.ruleHits[ruleID]++
		r.mu.Unlock()
	}

	r.emitRouted(msg, msg.SenderID, targetID)
	return res, nil
}

// Broadcast fans the message out to every registered agent, optionally
// filtered. Each recipient runs independently through the full pipeline
// on its own clone of the message with ReceiverID set to the recipient.
// Per-recipient handler errors are converted to failed Results so that
// one recipient cannot abort the fan-out; this is the one documented
// place the router converts an error into a failure.
func (r *Router) Broadcast(ctx context.Context, msg *Message, filter func(Agent) bool) []*Result {
	agents := r.registry.All()
	results := make([]*Result, 0, len(agents))
	for _, agent := range agents {
		if filter != nil && !filter(agent) {
			continue
		}
		clone := msg.Clone()
		clone.ReceiverID = agent.ID()
		handler := r.pipeline.Build(agent.Handle)
		res, err := handler(ctx, clone)
		if err != nil {
			res = Fail(err.Error())
		}
		results = append(results, res)
	}
	return results
}

// RouteForwards dispatches every forwarded message in res through the
// pipeline to its preset receiver, returning the results in order.
// Workflow orchestration emits forwards without dispatching them;
// callers opt in to the dispatch loop here. Forwards address a specific
// stage agent, so rule evaluation is skipped.
func (r *Router) RouteForwards(ctx context.Context, res *Result) ([]*Result, error) {
	var out []*Result
	for _, fwd := range res.ForwardedMessages {
		agent, ok := r.registry.Get(fwd.ReceiverID)
		if !ok {
			reason := fmt.Sprintf("agent %q not registered", fwd.ReceiverID)
			r.emitUnroutable(fwd, reason)
			out = append(out, Fail(fmt.Sprintf("No agent available: %s", reason)))
			continue
		}
		handler := r.pipeline.Build(agent.Handle)
		fres, err := handler(ctx, fwd)
		if err != nil {
			return out, err
		}
		r.emitRouted(fwd, fwd.SenderID, fwd.ReceiverID)
		out = append(out, fres)
	}
	return out, nil
}

func (r *Router) emitUnroutable(msg *Message, reason string) {
	r.mu.Lock()
	subs := make([]UnroutableFunc, len(r.unroutableSubs))
	copy(subs, r.unroutableSubs)
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"sender":     msg.SenderID,
		"reason":     reason,
	}).Warn("message unroutable")

	for _, fn := range subs {
		r.invokeSubscriber(func() { fn(msg, reason) })
	}
}

func (r *Router) emitRouted(msg *Message, fromAgent, toAgent string) {
	r.mu.Lock()
	subs := make([]RoutedFunc, len(r.routedSubs))
	copy(subs, r.routedSubs)
	r.mu.Unlock()

	for _, fn := range subs {
		r.invokeSubscriber(func() { fn(msg, fromAgent, toAgent) })
	}
}

// invokeSubscriber shields the router from subscriber panics.
func (r *Router) invokeSubscriber(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithField("panic", rec).Error("event subscriber panicked")
		}
	}()
	fn()
}
