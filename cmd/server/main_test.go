package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ordersvc/internal/config"
	"ordersvc/internal/events"
	"ordersvc/internal/idempotency"
)

func TestOpenDatabase_SQLiteInMemory(t *testing.T) {
	db, err := openDatabase(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count))
	assert.Zero(t, count)
}

func TestNewTransport(t *testing.T) {
	logger := zap.NewNop()

	transport, amqpTransport, err := newTransport(config.EventsConfig{Driver: "log"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &events.LogTransport{}, transport)
	assert.Nil(t, amqpTransport)

	transport, amqpTransport, err = newTransport(config.EventsConfig{Driver: "kafka", Brokers: []string{"localhost:9092"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &events.KafkaTransport{}, transport)
	assert.Nil(t, amqpTransport)
	require.NoError(t, transport.Close())

	_, _, err = newTransport(config.EventsConfig{Driver: "nats"}, logger)
	assert.Error(t, err)
}

func TestNewIdempotencyStore_FallsBackToMemory(t *testing.T) {
	logger := zap.NewNop()

	store := newIdempotencyStore(context.Background(), config.RedisConfig{Enabled: false, TTL: time.Hour}, logger)
	assert.IsType(t, &idempotency.MemoryStore{}, store)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store = newIdempotencyStore(ctx, config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1", TTL: time.Hour}, logger)
	assert.IsType(t, &idempotency.MemoryStore{}, store)
}
