package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"ordersvc/internal/config"
	"ordersvc/internal/dto"
)

// Listener consumes order events from its own queue and logs them.
type Listener struct {
	transport  *AMQPTransport
	queue      string
	exchange   string
	bindingKey string
	logger     *zap.Logger
}

func NewListener(transport *AMQPTransport, cfg config.EventsConfig, logger *zap.Logger) *Listener {
	return &Listener{
		transport:  transport,
		queue:      cfg.Queue,
		exchange:   cfg.Exchange,
		bindingKey: cfg.BindingKey,
		logger:     logger,
	}
}

// Run blocks until ctx is done or the delivery channel closes.
func (l *Listener) Run(ctx context.Context) error {
	ch, err := l.transport.Channel()
	if err != nil {
		return fmt.Errorf("amqp: open listener channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(l.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare queue %s: %w", l.queue, err)
	}
	if err := ch.QueueBind(l.queue, l.bindingKey, l.exchange, false, nil); err != nil {
		return fmt.Errorf("amqp: bind queue %s: %w", l.queue, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, l.queue, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp: consume %s: %w", l.queue, err)
	}

	l.logger.Info("event listener started", zap.String("queue", l.queue), zap.String("bindingKey", l.bindingKey))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			l.handle(ctx, d.RoutingKey, d.Headers, d.Body)
		}
	}
}

func (l *Listener) handle(ctx context.Context, routingKey string, headers amqp.Table, body []byte) {
	carrier := propagation.MapCarrier{}
	for k, v := range headers {
		if s, ok := v.(string); ok {
			carrier[k] = s
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)
	_, span := otel.Tracer("ordersvc/events").Start(ctx, "order.event.received")
	defer span.End()

	var snapshot dto.OrderResponse
	if err := json.Unmarshal(body, &snapshot); err != nil {
		l.logger.Warn("undecodable order event", zap.String("routingKey", routingKey), zap.Error(err))
		return
	}

	l.logger.Info("order event received",
		zap.String("routingKey", routingKey),
		zap.Int64("orderId", snapshot.ID),
		zap.String("orderNumber", snapshot.OrderNumber),
		zap.String("status", snapshot.Status),
		zap.Int("lineCount", len(snapshot.Lines)),
		zap.String("totalAmount", snapshot.TotalAmount.String()),
	)
}
