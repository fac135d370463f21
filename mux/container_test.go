package mux

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceContainer_SingletonBuiltOnceUnderConcurrency(t *testing.T) {
	// GIVEN a singleton registration
	c := NewServiceContainer()
	var built int64
	c.RegisterSingleton("clock", func() (any, error) {
		atomic.AddInt64(&built, 1)
		return SystemClock(), nil
	})

	// WHEN 100 goroutines resolve it concurrently
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Resolve("clock")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// THEN the factory ran exactly once
	assert.Equal(t, int64(1), atomic.LoadInt64(&built))
}

func TestServiceContainer_TransientBuiltPerResolve(t *testing.T) {
	c := NewServiceContainer()
	var built int64
	c.RegisterTransient("store", func() (any, error) {
		atomic.AddInt64(&built, 1)
		return NewMemoryStore(), nil
	})

	for i := 0; i < 5; i++ {
		_, err := c.Resolve("store")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(5), built)
}

func TestServiceContainer_FactoryErrorNotMemoized(t *testing.T) {
	c := NewServiceContainer()
	attempts := 0
	c.RegisterSingleton("flaky", func() (any, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("cold start")
		}
		return "ready", nil
	})

	_, err := c.Resolve("flaky")
	require.Error(t, err)

	v, err := c.Resolve("flaky")
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
	assert.Equal(t, 2, attempts)
}

func TestServiceContainer_ResolveUnknown(t *testing.T) {
	c := NewServiceContainer()
	_, err := c.Resolve("nope")
	assert.Error(t, err)
}

type closerSpy struct {
	closed int
	err    error
}

func (c *closerSpy) Close() error {
	c.closed++
	return c.err
}

func TestServiceContainer_CloseAggregatesAndAttemptsAll(t *testing.T) {
	c := NewServiceContainer()
	good := &closerSpy{}
	bad1 := &closerSpy{err: errors.New("disposer one failed")}
	bad2 := &closerSpy{err: errors.New("disposer two failed")}
	c.RegisterSingleton("good", func() (any, error) { return good, nil })
	c.RegisterSingleton("bad1", func() (any, error) { return bad1, nil })
	c.RegisterSingleton("bad2", func() (any, error) { return bad2, nil })

	for _, key := range []string{"good", "bad1", "bad2"} {
		_, err := c.Resolve(key)
		require.NoError(t, err)
	}

	err := c.Close()
	require.Error(t, err)
	assert.ErrorContains(t, err, "disposer one failed")
	assert.ErrorContains(t, err, "disposer two failed")
	assert.Equal(t, 1, good.closed)
	assert.Equal(t, 1, bad1.closed)
	assert.Equal(t, 1, bad2.closed)
}

func TestServiceContainer_CloseSkipsUnresolvedSingletons(t *testing.T) {
	c := NewServiceContainer()
	spy := &closerSpy{}
	c.RegisterSingleton("lazy", func() (any, error) { return spy, nil })

	require.NoError(t, c.Close())
	assert.Zero(t, spy.closed)
}

func TestServiceContainer_CloseIdempotent(t *testing.T) {
	c := NewServiceContainer()
	spy := &closerSpy{}
	c.RegisterSingleton("svc", func() (any, error) { return spy, nil })
	_, err := c.Resolve("svc")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, spy.closed)
}
