package middleware

import (
	"context"
	"strings"

	"github.com/agent-mux/agent-mux/mux"
)

// PriorityBoost raises the priority of messages from VIP senders to at
// least High. Sender matching ignores ASCII case. Urgent messages keep
// their priority.
func PriorityBoost(vipSenders []string) mux.Middleware {
	vips := make([]string, len(vipSenders))
	copy(vips, vipSenders)
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		for _, vip := range vips {
			if strings.EqualFold(msg.SenderID, vip) {
				if msg.Priority < mux.PriorityHigh {
					msg.Priority = mux.PriorityHigh
				}
				break
			}
		}
		return next(ctx, msg)
	}
}
