package middleware

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-mux/agent-mux/mux"
)

func TestEnrichment_StampsMetadata(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := mux.NewVirtualClock(start)
	spy := newHandlerSpy()
	msg := testMessage()

	_, err := Enrichment(clock)(context.Background(), msg, spy.Handler)
	require.NoError(t, err)

	received, ok := msg.MetadataValue(MetaReceivedAt)
	require.True(t, ok)
	assert.Equal(t, start, received)

	host, _ := os.Hostname()
	assert.Equal(t, host, msg.MetadataString(MetaProcessedBy))
	assert.NotEmpty(t, msg.ConversationID)
}

func TestEnrichment_DoesNotOverwriteReceivedAt(t *testing.T) {
	clock := mux.NewVirtualClock(time.Unix(1000, 0))
	spy := newHandlerSpy()
	msg := testMessage()
	original := time.Unix(500, 0).UTC()
	msg.SetMetadata(MetaReceivedAt, original)

	_, err := Enrichment(clock)(context.Background(), msg, spy.Handler)
	require.NoError(t, err)

	got, _ := msg.MetadataValue(MetaReceivedAt)
	assert.Equal(t, original, got)
}

func TestEnrichment_OverwritesProcessedByEachCall(t *testing.T) {
	clock := mux.NewVirtualClock(time.Unix(0, 0))
	spy := newHandlerSpy()
	msg := testMessage()
	msg.SetMetadata(MetaProcessedBy, "some-other-host")

	_, err := Enrichment(clock)(context.Background(), msg, spy.Handler)
	require.NoError(t, err)

	host, _ := os.Hostname()
	assert.Equal(t, host, msg.MetadataString(MetaProcessedBy))
}

func TestEnrichment_PreservesExistingConversationID(t *testing.T) {
	clock := mux.NewVirtualClock(time.Unix(0, 0))
	spy := newHandlerSpy()
	msg := testMessage()
	msg.ConversationID = "conv-42"

	_, err := Enrichment(clock)(context.Background(), msg, spy.Handler)
	require.NoError(t, err)
	assert.Equal(t, "conv-42", msg.ConversationID)
}

func TestEnrichment_PreservesWhitespaceConversationID(t *testing.T) {
	// The check is null-or-empty, not whitespace: a whitespace-only id is
	// deliberately kept.
	clock := mux.NewVirtualClock(time.Unix(0, 0))
	spy := newHandlerSpy()
	msg := testMessage()
	msg.ConversationID = "   "

	_, err := Enrichment(clock)(context.Background(), msg, spy.Handler)
	require.NoError(t, err)
	assert.Equal(t, "   ", msg.ConversationID)
}
