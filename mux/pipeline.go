package mux

import (
	"context"
	"sync"
)

// Handler is the downstream callable a middleware wraps: either the next
// middleware in the chain or the terminal agent handler.
type Handler func(ctx context.Context, msg *Message) (*Result, error)

// Middleware wraps a Handler. It may mutate the message, short-circuit by
// returning without calling next, or transform the result on the way back
// up. Cancellation flows through ctx unchanged; middleware must not
// translate ctx.Err() into a failed Result.
type Middleware func(ctx context.Context, msg *Message, next Handler) (*Result, error)

// Pipeline composes an ordered list of middleware around a terminal
// handler. Registration order is preserved: the first middleware added is
// the outermost wrapper. The pipeline may be rebuilt any number of times
// from the same list and yields identical behavior each time.
type Pipeline struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Use appends a middleware to the chain.
func (p *Pipeline) Use(mw Middleware) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.middlewares = append(p.middlewares, mw)
}

// Len returns the number of registered middleware.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.middlewares)
}

// Build wraps the middleware list around terminal, outermost first: for
// [M1, M2, M3] the effective order is
//
//	M1.pre → M2.pre → M3.pre → terminal → M3.post → M2.post → M1.post
//
// The middleware list is snapshotted under lock, so a built handler is
// unaffected by later Use calls. The built handler is reusable across
// concurrent invocations as long as the terminal and middleware are
// themselves safe.
func (p *Pipeline) Build(terminal Handler) Handler {
	p.mu.RLock()
	mws := make([]Middleware, len(p.middlewares))
	copy(mws, p.middlewares)
	p.mu.RUnlock()

	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		next := h
		h = func(ctx context.Context, msg *Message) (*Result, error) {
			return mw(ctx, msg, next)
		}
	}
	return h
}
