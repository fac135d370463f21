package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-mux/agent-mux/mux"
)

func TestPriorityBoost_RaisesVIPToHigh(t *testing.T) {
	mw := PriorityBoost([]string{"vip"})
	spy := newHandlerSpy()

	msg := testMessage()
	msg.SenderID = "VIP"
	msg.Priority = mux.PriorityLow

	_, err := mw(context.Background(), msg, spy.Handler)
	require.NoError(t, err)
	assert.Equal(t, mux.PriorityHigh, msg.Priority)
}

func TestPriorityBoost_UrgentStaysUrgent(t *testing.T) {
	mw := PriorityBoost([]string{"vip"})
	spy := newHandlerSpy()

	msg := testMessage()
	msg.SenderID = "VIP"
	msg.Priority = mux.PriorityUrgent

	_, err := mw(context.Background(), msg, spy.Handler)
	require.NoError(t, err)
	assert.Equal(t, mux.PriorityUrgent, msg.Priority)
}

func TestPriorityBoost_NonVIPUntouched(t *testing.T) {
	mw := PriorityBoost([]string{"vip"})
	spy := newHandlerSpy()

	msg := testMessage()
	msg.Priority = mux.PriorityLow

	_, err := mw(context.Background(), msg, spy.Handler)
	require.NoError(t, err)
	assert.Equal(t, mux.PriorityLow, msg.Priority)
}

func TestPriorityBoost_HighStaysHigh(t *testing.T) {
	mw := PriorityBoost([]string{"boss"})
	spy := newHandlerSpy()

	msg := testMessage()
	msg.SenderID = "boss"
	msg.Priority = mux.PriorityHigh

	_, err := mw(context.Background(), msg, spy.Handler)
	require.NoError(t, err)
	assert.Equal(t, mux.PriorityHigh, msg.Priority)
}
