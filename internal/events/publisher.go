// Package events publishes order snapshots to the message bus after each change.
package events

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"ordersvc/internal/config"
	"ordersvc/internal/domain"
	"ordersvc/internal/dto"
)

type Message struct {
	RoutingKey string
	Key        string
	Body       []byte
	Headers    map[string]string
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// ChangePublisher is best-effort: failures are logged and never returned to the caller.
type ChangePublisher struct {
	transport  Transport
	createdKey string
	updatedKey string
	deletedKey string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewChangePublisher(transport Transport, cfg config.EventsConfig, logger *zap.Logger) *ChangePublisher {
	return &ChangePublisher{
		transport:  transport,
		createdKey: cfg.CreatedKey,
		updatedKey: cfg.UpdatedKey,
		deletedKey: cfg.DeletedKey,
		timeout:    5 * time.Second,
		logger:     logger,
	}
}

func (p *ChangePublisher) OrderCreated(ctx context.Context, o *domain.Order) {
	p.publish(ctx, p.createdKey, o)
}

func (p *ChangePublisher) OrderUpdated(ctx context.Context, o *domain.Order) {
	p.publish(ctx, p.updatedKey, o)
}

func (p *ChangePublisher) OrderDeleted(ctx context.Context, o *domain.Order) {
	p.publish(ctx, p.deletedKey, o)
}

func (p *ChangePublisher) publish(ctx context.Context, routingKey string, o *domain.Order) {
	logger := p.logger.With(zap.String("routingKey", routingKey), zap.Int64("orderId", o.ID))

	body, err := json.Marshal(dto.NewOrderResponse(o))
	if err != nil {
		logger.Error("failed to encode order event", zap.Error(err))
		return
	}

	headers := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, headers)

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.transport.Send(sendCtx, Message{
		RoutingKey: routingKey,
		Key:        o.Number,
		Body:       body,
		Headers:    headers,
	})
	if err != nil {
		logger.Error("failed to publish order event", zap.Error(err))
		return
	}

	logger.Info("order event published")
}
