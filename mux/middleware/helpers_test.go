package middleware

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/agent-mux/agent-mux/mux"
)

// handlerSpy is a terminal handler recording how often it ran and what it
// returned. Safe for concurrent use.
type handlerSpy struct {
	mu      sync.Mutex
	calls   int
	respond func(call int, msg *mux.Message) (*mux.Result, error)
}

func newHandlerSpy() *handlerSpy {
	return &handlerSpy{
		respond: func(int, *mux.Message) (*mux.Result, error) { return mux.Ok("ok"), nil },
	}
}

func (h *handlerSpy) Handler(ctx context.Context, msg *mux.Message) (*mux.Result, error) {
	h.mu.Lock()
	h.calls++
	call := h.calls
	h.mu.Unlock()
	return h.respond(call, msg)
}

func (h *handlerSpy) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testMessage() *mux.Message {
	return mux.NewMessage("sender-1", "test subject", "test content")
}
