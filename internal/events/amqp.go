package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPTransport publishes to a durable topic exchange.
type AMQPTransport struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func DialAMQP(url, exchange string) (*AMQPTransport, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: declare exchange %s: %w", exchange, err)
	}

	return &AMQPTransport{conn: conn, ch: ch, exchange: exchange}, nil
}

func (t *AMQPTransport) Send(ctx context.Context, msg Message) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ch.PublishWithContext(ctx, t.exchange, msg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         msg.Body,
	})
}

// Channel opens a new channel on the same connection, for consumers.
func (t *AMQPTransport) Channel() (*amqp.Channel, error) {
	return t.conn.Channel()
}

func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ch.Close(); err != nil && !t.conn.IsClosed() {
		_ = t.conn.Close()
		return err
	}
	return t.conn.Close()
}
