package middleware

import (
	"context"
	"os"

	"github.com/google/uuid"

	"github.com/agent-mux/agent-mux/mux"
)

// Metadata keys written by Enrichment.
const (
	MetaReceivedAt  = "ReceivedAt"
	MetaProcessedBy = "ProcessedBy"
)

// Enrichment stamps bookkeeping metadata onto every message:
//
//   - "ReceivedAt": UTC timestamp, set only if absent
//   - "ProcessedBy": machine name, overwritten on every call
//   - ConversationID: generated only when the current one is "" — a
//     whitespace-only id is deliberately preserved (null-or-empty check,
//     not a whitespace check)
func Enrichment(clock mux.Clock) mux.Middleware {
	if clock == nil {
		clock = mux.SystemClock()
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		if _, ok := msg.MetadataValue(MetaReceivedAt); !ok {
			msg.SetMetadata(MetaReceivedAt, clock.Now().UTC())
		}
		msg.SetMetadata(MetaProcessedBy, host)
		if msg.ConversationID == "" {
			msg.ConversationID = uuid.NewString()
		}
		return next(ctx, msg)
	}
}
