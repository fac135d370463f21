package cmd

import (
	"context"
	"fmt"

	"github.com/agent-mux/agent-mux/mux"
)

// demoAgent is a minimal in-process agent for the demo command. Real
// deployments implement mux.Agent themselves.
type demoAgent struct {
	id   string
	name string
}

func newDemoAgent(id, name string) *demoAgent {
	return &demoAgent{id: id, name: name}
}

func (a *demoAgent) ID() string              { return a.id }
func (a *demoAgent) Name() string            { return a.name }
func (a *demoAgent) Status() mux.AgentStatus { return mux.AgentAvailable }

func (a *demoAgent) Capabilities() mux.Capabilities {
	return mux.Capabilities{
		Skills:                []string{"general"},
		SupportedCategories:   []string{"TechnicalSupport", "General"},
		MaxConcurrentMessages: 10,
	}
}

func (a *demoAgent) CanHandle(msg *mux.Message) bool { return true }

func (a *demoAgent) Handle(ctx context.Context, msg *mux.Message) (*mux.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mux.Ok(fmt.Sprintf("%s handled %q", a.name, msg.Subject)), nil
}
