package mux

import "github.com/sirupsen/logrus"

// RouterBuilder is the fluent configuration object assembling registry,
// pipeline, rules, and logger into a Router. Build may be called any
// number of times; each call returns a fresh Router populated from the
// recorded configuration.
type RouterBuilder struct {
	logger           logrus.FieldLogger
	clock            Clock
	engine           *RuleEngine
	pipeline         *Pipeline
	stopOnFirstMatch bool
	defaultAgentID   string
	agents           []Agent
	rules            []RoutingRule
	middlewares      []Middleware
}

// NewRouterBuilder creates a builder with the system clock, the logrus
// standard logger, and stop-on-first-match rule evaluation.
func NewRouterBuilder() *RouterBuilder {
	return &RouterBuilder{
		logger:           logrus.StandardLogger(),
		clock:            SystemClock(),
		stopOnFirstMatch: true,
	}
}

// WithLogger sets the logger every built router and its rule engine use.
func (b *RouterBuilder) WithLogger(logger logrus.FieldLogger) *RouterBuilder {
	b.logger = logger
	return b
}

// WithClock sets the clock handed to time-dependent middleware attached
// through config (see middleware.FromConfig).
func (b *RouterBuilder) WithClock(clock Clock) *RouterBuilder {
	b.clock = clock
	return b
}

// Clock returns the configured clock.
func (b *RouterBuilder) Clock() Clock { return b.clock }

// Logger returns the configured logger.
func (b *RouterBuilder) Logger() logrus.FieldLogger { return b.logger }

// WithRoutingEngine supplies a pre-built rule engine. The recorded rules
// are still added to it on Build. When set, successive Build calls share
// this engine.
func (b *RouterBuilder) WithRoutingEngine(engine *RuleEngine) *RouterBuilder {
	b.engine = engine
	return b
}

// WithPipeline supplies middleware to seed every built pipeline with.
// Build snapshots the supplied pipeline rather than mutating it, so
// repeated Build calls do not stack the recorded middleware onto it.
func (b *RouterBuilder) WithPipeline(pipeline *Pipeline) *RouterBuilder {
	b.pipeline = pipeline
	return b
}

// WithStopOnFirstMatch toggles short-circuit rule evaluation for engines
// the builder creates.
func (b *RouterBuilder) WithStopOnFirstMatch(stop bool) *RouterBuilder {
	b.stopOnFirstMatch = stop
	return b
}

// WithDefaultAgent sets the fallback agent for unmatched messages.
func (b *RouterBuilder) WithDefaultAgent(agentID string) *RouterBuilder {
	b.defaultAgentID = agentID
	return b
}

// RegisterAgent records an agent to register on every Build.
func (b *RouterBuilder) RegisterAgent(agent Agent) *RouterBuilder {
	b.agents = append(b.agents, agent)
	return b
}

// Use records a middleware to attach on every Build.
func (b *RouterBuilder) Use(mw Middleware) *RouterBuilder {
	b.middlewares = append(b.middlewares, mw)
	return b
}

// AddRoutingRule records a routing rule. Priority defaults to zero via
// AddRoutingRuleDefault.
func (b *RouterBuilder) AddRoutingRule(id, name string, predicate func(RoutingContext) bool, targetAgentID string, priority int) *RouterBuilder {
	b.rules = append(b.rules, RoutingRule{
		ID:            id,
		Name:          name,
		Predicate:     predicate,
		TargetAgentID: targetAgentID,
		Priority:      priority,
	})
	return b
}

// AddRoutingRuleDefault records a rule with priority zero.
func (b *RouterBuilder) AddRoutingRuleDefault(id, name string, predicate func(RoutingContext) bool, targetAgentID string) *RouterBuilder {
	return b.AddRoutingRule(id, name, predicate, targetAgentID, 0)
}

// Build assembles a fresh Router. An engine supplied via WithRoutingEngine
// is reused; otherwise a new one is created per call. The pipeline is new
// on every call, seeded with a copy of the WithPipeline middleware, so
// separately built routers do not share pipeline state.
func (b *RouterBuilder) Build() *Router {
	engine := b.engine
	if engine == nil {
		engine = NewRuleEngine(b.stopOnFirstMatch, b.logger)
	}
	pipeline := NewPipeline()
	if b.pipeline != nil {
		b.pipeline.mu.RLock()
		pipeline.middlewares = append(pipeline.middlewares, b.pipeline.middlewares...)
		b.pipeline.mu.RUnlock()
	}

	router := NewRouter(engine, NewAgentRegistry(), pipeline, b.logger)
	if b.defaultAgentID != "" {
		router.SetDefaultAgent(b.defaultAgentID)
	}
	for _, a := range b.agents {
		router.RegisterAgent(a)
	}
	for _, rule := range b.rules {
		router.AddRoutingRule(rule)
	}
	for _, mw := range b.middlewares {
		router.Use(mw)
	}
	return router
}
