package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
	"ordersvc/internal/idempotency"
)

type StockClient interface {
	FetchProduct(ctx context.Context, productID int64) (*domain.Product, error)
	UpdateStock(ctx context.Context, productID int64, newStock int) error
	DecrementStock(ctx context.Context, productID int64, quantity int, operationID string) error
	IncrementStock(ctx context.Context, productID int64, quantity int, operationID string) error
}

// StockLedger applies stock reservations and releases at most once per operation and product.
type StockLedger struct {
	client StockClient
	store  idempotency.Store
	atomic bool
	logger *zap.Logger
}

func NewStockLedger(client StockClient, store idempotency.Store, atomic bool, logger *zap.Logger) *StockLedger {
	return &StockLedger{
		client: client,
		store:  store,
		atomic: atomic,
		logger: logger,
	}
}

func (l *StockLedger) Reserve(ctx context.Context, operationID string, productID int64, quantity int) error {
	return l.apply(ctx, "reserve", operationID, productID, quantity, func() error {
		if l.atomic {
			return l.client.DecrementStock(ctx, productID, quantity, operationID)
		}

		product, err := l.client.FetchProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !product.HasStockFor(quantity) {
			return apperrors.NewInsufficientStockError(productID, product.Name, product.Stock, quantity)
		}
		return l.client.UpdateStock(ctx, productID, product.Stock-quantity)
	})
}

func (l *StockLedger) Release(ctx context.Context, operationID string, productID int64, quantity int) error {
	return l.apply(ctx, "release", operationID, productID, quantity, func() error {
		if l.atomic {
			return l.client.IncrementStock(ctx, productID, quantity, operationID)
		}

		product, err := l.client.FetchProduct(ctx, productID)
		if err != nil {
			return err
		}
		return l.client.UpdateStock(ctx, productID, product.Stock+quantity)
	})
}

func (l *StockLedger) apply(ctx context.Context, action, operationID string, productID int64, quantity int, fn func() error) error {
	key := fmt.Sprintf("stock:%s:%s:%d", action, operationID, productID)

	claimed, err := l.store.Claim(ctx, key)
	if err != nil {
		return apperrors.NewInternalError("claiming idempotency key", err)
	}
	if !claimed {
		l.logger.Info("stock change already applied",
			zap.String("action", action),
			zap.String("operationId", operationID),
			zap.Int64("productId", productID),
		)
		return nil
	}

	if err := fn(); err != nil {
		if ferr := l.store.Forget(ctx, key); ferr != nil {
			l.logger.Warn("failed to forget idempotency key", zap.String("key", key), zap.Error(ferr))
		}
		return err
	}

	l.logger.Info("stock change applied",
		zap.String("action", action),
		zap.String("operationId", operationID),
		zap.Int64("productId", productID),
		zap.Int("quantity", quantity),
	)
	return nil
}
