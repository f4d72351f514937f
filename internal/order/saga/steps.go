package saga

import (
	"context"
	"fmt"
)

type StockLedger interface {
	Reserve(ctx context.Context, operationID string, productID int64, quantity int) error
	Release(ctx context.Context, operationID string, productID int64, quantity int) error
}

// --- ReserveStockStep ---

type ReserveStockStep struct {
	ledger      StockLedger
	operationID string
	productID   int64
	quantity    int
}

func NewReserveStockStep(ledger StockLedger, operationID string, productID int64, quantity int) *ReserveStockStep {
	return &ReserveStockStep{
		ledger:      ledger,
		operationID: operationID,
		productID:   productID,
		quantity:    quantity,
	}
}

func (s *ReserveStockStep) Name() string { return fmt.Sprintf("reserve_stock_%d", s.productID) }

func (s *ReserveStockStep) Execute(ctx context.Context) error {
	return s.ledger.Reserve(ctx, s.operationID, s.productID, s.quantity)
}

func (s *ReserveStockStep) Compensate(ctx context.Context) error {
	return s.ledger.Release(ctx, s.operationID, s.productID, s.quantity)
}

// --- FuncStep ---

// FuncStep adapts plain functions. A nil CompensateFunc means nothing to undo.
type FuncStep struct {
	StepName       string
	ExecuteFunc    func(ctx context.Context) error
	CompensateFunc func(ctx context.Context) error
}

func (s *FuncStep) Name() string { return s.StepName }

func (s *FuncStep) Execute(ctx context.Context) error {
	return s.ExecuteFunc(ctx)
}

func (s *FuncStep) Compensate(ctx context.Context) error {
	if s.CompensateFunc == nil {
		return nil
	}
	return s.CompensateFunc(ctx)
}
