package events

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport writes events to the log instead of a broker.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.logger.Info("order event",
		zap.String("routingKey", msg.RoutingKey),
		zap.String("key", msg.Key),
		zap.ByteString("body", msg.Body),
	)
	return nil
}

func (t *LogTransport) Close() error { return nil }
