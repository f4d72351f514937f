package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport writes each event to the topic named by its routing key, keyed by order number.
type KafkaTransport struct {
	writer messageWriter
}

func NewKafkaTransport(brokers []string) *KafkaTransport {
	return &KafkaTransport{writer: newKafkaWriter(brokers)}
}

// newKafkaWriter flushes after 10ms rather than the library's one second batch window.
func newKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func (t *KafkaTransport) Send(ctx context.Context, msg Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return t.writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.RoutingKey,
		Key:     []byte(msg.Key),
		Value:   msg.Body,
		Headers: headers,
	})
}

func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
