package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agent-mux/agent-mux/mux"
)

// queueOutcome is what a waiting submitter receives after its batch runs.
type queueOutcome struct {
	res *mux.Result
	err error
}

// queueItem is one pending submission.
type queueItem struct {
	ctx  context.Context
	msg  *mux.Message
	next mux.Handler
	done chan queueOutcome // buffered; the flusher never blocks on it
}

// MessageQueueMiddleware batches submissions: a message is enqueued and
// its Result delivered once the batch flushes, either because the batch
// reached batchSize or because the periodic timer fired. Every submitted
// message receives exactly one Result; a handler error or panic inside a
// batch surfaces for that message alone as a "Batch processing error"
// failure. Close stops the timer, flushes the pending batch, and is
// idempotent; submissions after Close run inline without batching.
type MessageQueueMiddleware struct {
	mu      sync.Mutex
	pending []*queueItem
	closed  bool

	batchSize    int
	batchTimeout time.Duration
	clock        mux.Clock

	kick      chan struct{}
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// NewMessageQueue creates a batching middleware and starts its flush
// timer.
func NewMessageQueue(batchSize int, batchTimeout time.Duration, clock mux.Clock) *MessageQueueMiddleware {
	if batchSize < 1 {
		batchSize = 1
	}
	if clock == nil {
		clock = mux.SystemClock()
	}
	m := &MessageQueueMiddleware{
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		clock:        clock,
		kick:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
	go m.run()
	return m
}

// Middleware returns the pipeline function.
func (m *MessageQueueMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		item := &queueItem{ctx: ctx, msg: msg, next: next, done: make(chan queueOutcome, 1)}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return m.process(item)
		}
		m.pending = append(m.pending, item)
		full := len(m.pending) >= m.batchSize
		m.mu.Unlock()

		if full {
			select {
			case m.kick <- struct{}{}:
			default:
			}
		}

		select {
		case out := <-item.done:
			return out.res, out.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// run flushes on the periodic timer or when a batch fills.
func (m *MessageQueueMiddleware) run() {
	defer close(m.loopDone)
	for {
		select {
		case <-m.done:
			return
		case <-m.kick:
			m.flush()
		case <-m.clock.After(m.batchTimeout):
			m.flush()
		}
	}
}

// flush pops the pending batch and processes each item, delivering its
// outcome on the item's channel.
func (m *MessageQueueMiddleware) flush() {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, item := range batch {
		res, err := m.process(item)
		item.done <- queueOutcome{res: res, err: err}
	}
}

// process runs one item, converting handler errors and panics into
// per-message batch failures. Cancellation is the exception: it
// propagates as an error, untranslated.
func (m *MessageQueueMiddleware) process(item *queueItem) (res *mux.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = mux.Fail(fmt.Sprintf("Batch processing error: %v", r))
			err = nil
		}
	}()
	res, err = item.next(item.ctx, item.msg)
	if err != nil {
		if isCancellation(err) {
			return nil, err
		}
		return mux.Fail(fmt.Sprintf("Batch processing error: %v", err)), nil
	}
	return res, nil
}

// Close stops the flush timer and drains the pending batch. Safe to call
// multiple times.
func (m *MessageQueueMiddleware) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
		<-m.loopDone
		m.flush()
	})
	return nil
}

// PendingLen returns the number of queued, unflushed submissions.
func (m *MessageQueueMiddleware) PendingLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
