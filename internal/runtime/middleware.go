package runtime

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	loggingpkg "github.com/drblury/protogate/internal/runtime/logging"
)

// busMiddlewares is the handler chain installed on the bus router. The
// forwarders only copy messages into the dispatch inbox, so there is nothing
// worth retrying; a panic is turned into a nack instead of killing the router.
func busMiddlewares(logger loggingpkg.ServiceLogger) []message.HandlerMiddleware {
	return []message.HandlerMiddleware{
		logMessagesMiddleware(logger),
		middleware.Recoverer,
	}
}

// logMessagesMiddleware traces every message received from the bus.
func logMessagesMiddleware(logger loggingpkg.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger.Trace("Received bus message", loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"handler":      message.HandlerNameFromCtx(msg.Context()),
				"topic":        message.SubscribeTopicFromCtx(msg.Context()),
				"metadata":     msg.Metadata,
			})
			return h(msg)
		}
	}
}
