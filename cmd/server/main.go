package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ordersvc/internal/auth"
	"ordersvc/internal/config"
	"ordersvc/internal/events"
	"ordersvc/internal/idempotency"
	"ordersvc/internal/infrastructure/logger"
	"ordersvc/internal/infrastructure/mysql"
	"ordersvc/internal/infrastructure/sqlite"
	"ordersvc/internal/infrastructure/telemetry"
	"ordersvc/internal/order"
	"ordersvc/internal/server"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.Telemetry)
	if err != nil {
		zapLogger.Fatal("setting up tracer", zap.Error(err))
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected", zap.String("driver", cfg.Database.Driver))

	store := newIdempotencyStore(ctx, cfg.Redis, zapLogger)

	transport, amqpTransport, err := newTransport(cfg.Events, zapLogger)
	if err != nil {
		zapLogger.Fatal("connecting to event bus", zap.Error(err))
	}
	defer transport.Close()

	if cfg.Events.Listen && amqpTransport != nil {
		listener := events.NewListener(amqpTransport, cfg.Events, zapLogger)
		go func() {
			if err := listener.Run(ctx); err != nil {
				zapLogger.Error("event listener stopped", zap.Error(err))
			}
		}()
	}

	publisher := events.NewChangePublisher(transport, cfg.Events, zapLogger)
	module := order.NewModule(db, cfg, store, publisher, zapLogger)

	routerCfg := server.RouterConfig{AllowedOrigins: cfg.CORS.AllowedOrigins}
	if cfg.Auth.Enabled {
		jwks := auth.NewJWKSCache(cfg.Auth.JWKSURL, nil, 0, zapLogger)
		routerCfg.Auth = auth.NewMiddleware(jwks, cfg.Auth.Issuer, cfg.Auth.RequiredRole, zapLogger).Handler
	}
	router := server.NewRouter(module.OrderController, module.ClientOrderController, routerCfg, zapLogger)

	srv := server.New(cfg.Server, router, zapLogger)
	if err := srv.Run(ctx); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdownTracer(shutdownCtx); err != nil {
		zapLogger.Error("tracer shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.NewConnection(ctx, cfg.Path)
	default:
		db, err := mysql.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		if err := mysql.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}

// newIdempotencyStore prefers Redis so reservation keys survive restarts and are shared across replicas.
func newIdempotencyStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) idempotency.Store {
	if !cfg.Enabled {
		return idempotency.NewMemoryStore(cfg.TTL)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory idempotency store", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = rdb.Close()
		return idempotency.NewMemoryStore(cfg.TTL)
	}

	logger.Info("redis connected", zap.String("addr", cfg.Addr))
	return idempotency.NewRedisStore(rdb, cfg.TTL, "ordersvc")
}

func newTransport(cfg config.EventsConfig, logger *zap.Logger) (events.Transport, *events.AMQPTransport, error) {
	switch cfg.Driver {
	case "amqp":
		t, err := events.DialAMQP(cfg.URL, cfg.Exchange)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	case "kafka":
		return events.NewKafkaTransport(cfg.Brokers), nil, nil
	case "log":
		return events.NewLogTransport(logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}
