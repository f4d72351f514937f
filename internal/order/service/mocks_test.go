package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/shopspring/decimal"

	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
)

func int64Ptr(i int64) *int64 {
	return &i
}

func intPtr(i int) *int {
	return &i
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type mockAddressRepository struct {
	FindByFieldsFunc func(ctx context.Context, tx *sql.Tx, a domain.Address) (*domain.Address, error)
	InsertFunc       func(ctx context.Context, tx *sql.Tx, a domain.Address) (int64, error)
}

func (m *mockAddressRepository) FindByFields(ctx context.Context, tx *sql.Tx, a domain.Address) (*domain.Address, error) {
	return m.FindByFieldsFunc(ctx, tx, a)
}

func (m *mockAddressRepository) Insert(ctx context.Context, tx *sql.Tx, a domain.Address) (int64, error) {
	return m.InsertFunc(ctx, tx, a)
}

// stubCatalog serves products from a map and counts fetches.
type stubCatalog struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	fetches  int
	err      error
}

func (s *stubCatalog) FetchProduct(_ context.Context, productID int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[productID]
	if !ok {
		return nil, apperrors.NewProductNotFoundError(productID)
	}
	return &p, nil
}
