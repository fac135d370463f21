package mux

import (
	"context"
	"strings"
	"sync"
)

// AgentStatus is the availability state an agent reports.
type AgentStatus int

const (
	AgentAvailable AgentStatus = iota
	AgentBusy
	AgentOffline
)

// String returns the human-readable status name.
func (s AgentStatus) String() string {
	switch s {
	case AgentAvailable:
		return "Available"
	case AgentBusy:
		return "Busy"
	case AgentOffline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// Capabilities describes what an agent can do.
type Capabilities struct {
	Skills                []string
	SupportedCategories   []string
	MaxConcurrentMessages int
}

// HasSkill reports whether the skill is present, ignoring case.
func (c Capabilities) HasSkill(skill string) bool {
	for _, s := range c.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

// SupportsCategory reports case-sensitive category membership.
func (c Capabilities) SupportsCategory(category string) bool {
	for _, s := range c.SupportedCategories {
		if s == category {
			return true
		}
	}
	return false
}

// Agent is the capability set the router consumes. Concrete agent
// implementations live outside the core.
type Agent interface {
	ID() string
	Name() string
	Status() AgentStatus
	Capabilities() Capabilities

	// CanHandle reports whether the agent accepts the message. The router
	// does not consult it during rule-based selection; broadcast filters
	// and custom predicates may.
	CanHandle(msg *Message) bool

	// Handle processes the message. Implementations that honor ctx return
	// ctx.Err() unchanged when cancelled.
	Handle(ctx context.Context, msg *Message) (*Result, error)
}

// AgentRegistry is a thread-safe mapping from agent id to Agent.
// Registration order is preserved so that snapshot listings are
// deterministic.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]Agent
	order  []string
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]Agent)}
}

// Register adds an agent, replacing any prior entry with the same id.
// Replacement keeps the original position in the listing order.
func (r *AgentRegistry) Register(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := agent.ID()
	if _, exists := r.agents[id]; !exists {
		r.order = append(r.order, id)
	}
	r.agents[id] = agent
}

// Unregister removes an agent, reporting whether it existed.
func (r *AgentRegistry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[id]; !exists {
		return false
	}
	delete(r.agents, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get looks up an agent by id.
func (r *AgentRegistry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// All returns a snapshot of the registered agents in registration order.
func (r *AgentRegistry) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// ByCapability returns the agents whose capabilities include the skill,
// ignoring case, in registration order.
func (r *AgentRegistry) ByCapability(skill string) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Agent
	for _, id := range r.order {
		if a := r.agents[id]; a.Capabilities().HasSkill(skill) {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of registered agents.
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
