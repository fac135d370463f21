package middleware

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/agent-mux/agent-mux/mux"
)

// MetaProcessingTimeMs is written by Timing.
const MetaProcessingTimeMs = "ProcessingTimeMs"

// Timing measures downstream processing time on the injected clock and
// records it as metadata["ProcessingTimeMs"] (int64 milliseconds). On a
// downstream error the measurement is skipped and the error propagates.
func Timing(clock mux.Clock, logger logrus.FieldLogger) mux.Middleware {
	if clock == nil {
		clock = mux.SystemClock()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		start := clock.Now()
		res, err := next(ctx, msg)
		if err != nil {
			return res, err
		}
		elapsed := clock.Now().Sub(start)
		msg.SetMetadata(MetaProcessingTimeMs, elapsed.Milliseconds())
		logger.WithFields(logrus.Fields{
			"message_id":  msg.ID,
			"duration_ms": elapsed.Milliseconds(),
		}).Debug("message timed")
		return res, nil
	}
}
