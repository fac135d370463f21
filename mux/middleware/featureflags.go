package middleware

import (
	"context"
	"sync"

	"github.com/agent-mux/agent-mux/mux"
)

// FeatureKeyPrefix prefixes the typed-context key carrying each flag
// evaluation.
const FeatureKeyPrefix = "Feature_"

// featureFlag is one registered flag.
type featureFlag struct {
	enabled   bool
	condition func(*mux.Message) bool
}

// FeatureFlagsMiddleware evaluates registered flags per message, storing
// `enabled AND condition(msg)` in the message's typed context under
// "Feature_<name>". A nil condition counts as true. Condition panics are
// not swallowed; the layer above decides whether to convert them.
type FeatureFlagsMiddleware struct {
	mu    sync.RWMutex
	flags map[string]featureFlag
	order []string
}

// NewFeatureFlags creates an empty flag registry.
func NewFeatureFlags() *FeatureFlagsMiddleware {
	return &FeatureFlagsMiddleware{flags: make(map[string]featureFlag)}
}

// RegisterFlag adds a flag, replacing any prior registration with the
// same name.
func (f *FeatureFlagsMiddleware) RegisterFlag(name string, enabled bool, condition func(*mux.Message) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.flags[name]; !exists {
		f.order = append(f.order, name)
	}
	f.flags[name] = featureFlag{enabled: enabled, condition: condition}
}

// Middleware returns the pipeline function.
func (f *FeatureFlagsMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		f.mu.RLock()
		names := make([]string, len(f.order))
		copy(names, f.order)
		flags := make(map[string]featureFlag, len(f.flags))
		for k, v := range f.flags {
			flags[k] = v
		}
		f.mu.RUnlock()

		for _, name := range names {
			flag := flags[name]
			value := flag.enabled
			if value && flag.condition != nil {
				value = flag.condition(msg)
			}
			msg.SetContextValue(FeatureKeyPrefix+name, value)
		}
		return next(ctx, msg)
	}
}
