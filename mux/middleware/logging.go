package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agent-mux/agent-mux/mux"
)

// Logging emits structured log events before and after the downstream
// handler runs. It never alters the result; errors pass through
// untouched after being logged.
func Logging(logger logrus.FieldLogger) mux.Middleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		logger.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"sender":     msg.SenderID,
			"receiver":   msg.ReceiverID,
			"category":   msg.Category,
			"priority":   msg.Priority.String(),
		}).Debug("processing message")

		start := time.Now()
		res, err := next(ctx, msg)
		elapsed := time.Since(start)

		if err != nil {
			logger.WithFields(logrus.Fields{
				"message_id":  msg.ID,
				"duration_ms": elapsed.Milliseconds(),
			}).WithError(err).Error("message processing failed")
			return res, err
		}

		logger.WithFields(logrus.Fields{
			"message_id":  msg.ID,
			"receiver":    msg.ReceiverID,
			"success":     res != nil && res.Success,
			"duration_ms": elapsed.Milliseconds(),
		}).Info("message processed")
		return res, nil
	}
}
