package mux

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// traceMiddleware records pre/post markers into a shared log.
func traceMiddleware(name string, log *[]string) Middleware {
	return func(ctx context.Context, msg *Message, next Handler) (*Result, error) {
		*log = append(*log, name+".pre")
		res, err := next(ctx, msg)
		if err != nil {
			return res, err
		}
		*log = append(*log, name+".post")
		return res, nil
	}
}

func TestPipeline_ExactCallSequence(t *testing.T) {
	// GIVEN pipeline [M1, M2, M3] around terminal H
	var log []string
	p := NewPipeline()
	p.Use(traceMiddleware("M1", &log))
	p.Use(traceMiddleware("M2", &log))
	p.Use(traceMiddleware("M3", &log))

	terminal := func(ctx context.Context, msg *Message) (*Result, error) {
		log = append(log, "H")
		return Ok("done"), nil
	}

	// WHEN invoked
	res, err := p.Build(terminal)(context.Background(), NewMessage("s", "x", "y"))

	// THEN the call order is M1.pre M2.pre M3.pre H M3.post M2.post M1.post
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"M1.pre", "M2.pre", "M3.pre", "H", "M3.post", "M2.post", "M1.post"}, log)
}

func TestPipeline_ShortCircuitSkipsDownstream(t *testing.T) {
	var log []string
	p := NewPipeline()
	p.Use(traceMiddleware("outer", &log))
	p.Use(func(ctx context.Context, msg *Message, next Handler) (*Result, error) {
		log = append(log, "gate")
		return Fail("blocked"), nil
	})
	p.Use(traceMiddleware("inner", &log))

	terminalRan := false
	terminal := func(ctx context.Context, msg *Message) (*Result, error) {
		terminalRan = true
		return Ok(""), nil
	}

	res, err := p.Build(terminal)(context.Background(), NewMessage("s", "x", "y"))

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "blocked", res.Error)
	assert.False(t, terminalRan)
	// The short-circuit result still flows back through the outer post.
	assert.Equal(t, []string{"outer.pre", "gate", "outer.post"}, log)
}

func TestPipeline_ErrorSkipsConventionalPost(t *testing.T) {
	// A middleware written in the early-return style does not run its post
	// section when the downstream errors; one using defer still observes
	// the unwind. Both behaviors are part of the documented contract.
	var log []string
	p := NewPipeline()
	p.Use(func(ctx context.Context, msg *Message, next Handler) (*Result, error) {
		defer func() { log = append(log, "scoped.release") }()
		return next(ctx, msg)
	})
	p.Use(traceMiddleware("plain", &log))

	boom := errors.New("handler exploded")
	terminal := func(ctx context.Context, msg *Message) (*Result, error) {
		return nil, boom
	}

	_, err := p.Build(terminal)(context.Background(), NewMessage("s", "x", "y"))

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"plain.pre", "scoped.release"}, log)
}

func TestPipeline_RebuildYieldsIdenticalBehavior(t *testing.T) {
	p := NewPipeline()
	calls := 0
	p.Use(func(ctx context.Context, msg *Message, next Handler) (*Result, error) {
		calls++
		return next(ctx, msg)
	})
	terminal := func(ctx context.Context, msg *Message) (*Result, error) { return Ok("t"), nil }

	h1 := p.Build(terminal)
	h2 := p.Build(terminal)

	msg := NewMessage("s", "x", "y")
	_, err := h1(context.Background(), msg)
	require.NoError(t, err)
	_, err = h2(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPipeline_BuildSnapshotsMiddlewareList(t *testing.T) {
	p := NewPipeline()
	terminal := func(ctx context.Context, msg *Message) (*Result, error) { return Ok("t"), nil }
	built := p.Build(terminal)

	lateCalled := false
	p.Use(func(ctx context.Context, msg *Message, next Handler) (*Result, error) {
		lateCalled = true
		return next(ctx, msg)
	})

	_, err := built(context.Background(), NewMessage("s", "x", "y"))
	require.NoError(t, err)
	assert.False(t, lateCalled, "a built handler must not pick up later Use calls")
}

func TestPipeline_CancellationPassesThroughUnchanged(t *testing.T) {
	p := NewPipeline()
	var observed context.Context
	p.Use(func(ctx context.Context, msg *Message, next Handler) (*Result, error) {
		observed = ctx
		return next(ctx, msg)
	})

	terminal := func(ctx context.Context, msg *Message) (*Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Ok(""), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Build(terminal)(ctx, NewMessage("s", "x", "y"))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ctx, observed, "middleware must hand the same cancel signal downstream")
}

func TestPipeline_ConcurrentInvocations(t *testing.T) {
	p := NewPipeline()
	var mu sync.Mutex
	count := 0
	p.Use(func(ctx context.Context, msg *Message, next Handler) (*Result, error) {
		mu.Lock()
		count++
		mu.Unlock()
		return next(ctx, msg)
	})
	terminal := func(ctx context.Context, msg *Message) (*Result, error) { return Ok(""), nil }
	built := p.Build(terminal)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = built(context.Background(), NewMessage("s", "x", "y"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, count)
}
