package middleware

import (
	"context"
	"math/rand"
	"sync"

	"github.com/agent-mux/agent-mux/mux"
)

// experiment is one registered A/B test.
type experiment struct {
	probability float64
	variantA    string
	variantB    string
}

// ExperimentKeyPrefix prefixes the metadata key carrying each assignment.
const ExperimentKeyPrefix = "Experiment_"

// ABTestingMiddleware assigns every message a variant for each registered
// experiment: a uniform draw below the experiment's probability picks
// variant A, otherwise variant B. Assignments land in
// metadata["Experiment_<name>"]. The random source is guarded by the
// middleware's mutex, so concurrent pipeline invocations draw safely.
type ABTestingMiddleware struct {
	mu          sync.Mutex
	rng         *rand.Rand
	experiments map[string]experiment
	order       []string
}

// NewABTesting creates an A/B middleware seeded deterministically for
// reproducible assignment streams in tests; production callers seed with
// something varying.
func NewABTesting(seed int64) *ABTestingMiddleware {
	return &ABTestingMiddleware{
		rng:         rand.New(rand.NewSource(seed)),
		experiments: make(map[string]experiment),
	}
}

// RegisterExperiment adds an experiment, replacing any prior registration
// with the same name. Probabilities are clamped into [0, 1].
func (a *ABTestingMiddleware) RegisterExperiment(name string, probability float64, variantA, variantB string) {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.experiments[name]; !exists {
		a.order = append(a.order, name)
	}
	a.experiments[name] = experiment{probability: probability, variantA: variantA, variantB: variantB}
}

// Middleware returns the pipeline function. Experiments are evaluated in
// registration order so assignment streams are reproducible under a
// fixed seed.
func (a *ABTestingMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		a.mu.Lock()
		for _, name := range a.order {
			exp := a.experiments[name]
			variant := exp.variantB
			if a.rng.Float64() < exp.probability {
				variant = exp.variantA
			}
			msg.SetMetadata(ExperimentKeyPrefix+name, variant)
		}
		a.mu.Unlock()
		return next(ctx, msg)
	}
}
