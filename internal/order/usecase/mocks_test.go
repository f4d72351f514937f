package usecase

import (
	"context"
	"database/sql"
	"sync"

	"github.com/shopspring/decimal"

	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
	"ordersvc/internal/order/service"
)

func int64Ptr(i int64) *int64 {
	return &i
}

func intPtr(i int) *int {
	return &i
}

func stringPtr(s string) *string {
	return &s
}

type mockOrderRepository struct {
	FindByIDFunc       func(ctx context.Context, id int64) (*domain.Order, error)
	FindByNumberFunc   func(ctx context.Context, number string) (*domain.Order, error)
	FindAllFunc        func(ctx context.Context) ([]domain.Order, error)
	FindByClientIDFunc func(ctx context.Context, clientID int64) ([]domain.Order, error)
	InsertFunc         func(ctx context.Context, tx *sql.Tx, o *domain.Order) (int64, error)
	UpdateFunc         func(ctx context.Context, tx *sql.Tx, o *domain.Order) error
	DeleteFunc         func(ctx context.Context, tx *sql.Tx, id int64) error
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	return m.FindByIDFunc(ctx, id)
}

func (m *mockOrderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return m.FindByNumberFunc(ctx, number)
}

func (m *mockOrderRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	return m.FindAllFunc(ctx)
}

func (m *mockOrderRepository) FindByClientID(ctx context.Context, clientID int64) ([]domain.Order, error) {
	return m.FindByClientIDFunc(ctx, clientID)
}

func (m *mockOrderRepository) Insert(ctx context.Context, tx *sql.Tx, o *domain.Order) (int64, error) {
	return m.InsertFunc(ctx, tx, o)
}

func (m *mockOrderRepository) Update(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	return m.UpdateFunc(ctx, tx, o)
}

func (m *mockOrderRepository) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	return m.DeleteFunc(ctx, tx, id)
}

type mockOrderLineRepository struct {
	InsertFunc          func(ctx context.Context, tx *sql.Tx, line domain.OrderLine) (int64, error)
	UpdateFunc          func(ctx context.Context, tx *sql.Tx, line domain.OrderLine) error
	DeleteByIDsFunc     func(ctx context.Context, tx *sql.Tx, orderID int64, ids []int64) error
	DeleteByOrderIDFunc func(ctx context.Context, tx *sql.Tx, orderID int64) error
}

func (m *mockOrderLineRepository) Insert(ctx context.Context, tx *sql.Tx, line domain.OrderLine) (int64, error) {
	return m.InsertFunc(ctx, tx, line)
}

func (m *mockOrderLineRepository) Update(ctx context.Context, tx *sql.Tx, line domain.OrderLine) error {
	return m.UpdateFunc(ctx, tx, line)
}

func (m *mockOrderLineRepository) DeleteByIDs(ctx context.Context, tx *sql.Tx, orderID int64, ids []int64) error {
	return m.DeleteByIDsFunc(ctx, tx, orderID, ids)
}

func (m *mockOrderLineRepository) DeleteByOrderID(ctx context.Context, tx *sql.Tx, orderID int64) error {
	return m.DeleteByOrderIDFunc(ctx, tx, orderID)
}

type mockAddressResolver struct {
	ResolveFunc func(ctx context.Context, tx *sql.Tx, candidate *domain.Address) (*domain.Address, error)
}

func (m *mockAddressResolver) Resolve(ctx context.Context, tx *sql.Tx, candidate *domain.Address) (*domain.Address, error) {
	return m.ResolveFunc(ctx, tx, candidate)
}

type mockLineReconciler struct {
	ReconcileFunc func(ctx context.Context, existing []domain.OrderLine, desired []domain.LineSpec, mode service.ReconcileMode) (*service.Reconciliation, error)
}

func (m *mockLineReconciler) Reconcile(ctx context.Context, existing []domain.OrderLine, desired []domain.LineSpec, mode service.ReconcileMode) (*service.Reconciliation, error) {
	return m.ReconcileFunc(ctx, existing, desired, mode)
}

type stockCall struct {
	action    string
	productID int64
	quantity  int
}

type recordingLedger struct {
	mu         sync.Mutex
	calls      []stockCall
	reserveErr error
}

func (l *recordingLedger) Reserve(_ context.Context, _ string, productID int64, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reserveErr != nil {
		return l.reserveErr
	}
	l.calls = append(l.calls, stockCall{action: "reserve", productID: productID, quantity: quantity})
	return nil
}

func (l *recordingLedger) Release(_ context.Context, _ string, productID int64, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, stockCall{action: "release", productID: productID, quantity: quantity})
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	created []*domain.Order
	updated []*domain.Order
	deleted []*domain.Order
}

func (p *recordingPublisher) OrderCreated(_ context.Context, o *domain.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, o)
}

func (p *recordingPublisher) OrderUpdated(_ context.Context, o *domain.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, o)
}

func (p *recordingPublisher) OrderDeleted(_ context.Context, o *domain.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, o)
}

// memoryCatalog serves products and stock from memory. It satisfies both the
// reconciler's product lookup and the stock ledger's client.
type memoryCatalog struct {
	mu       sync.Mutex
	products map[int64]domain.Product
}

func newMemoryCatalog(products ...domain.Product) *memoryCatalog {
	c := &memoryCatalog{products: make(map[int64]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *memoryCatalog) FetchProduct(_ context.Context, productID int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, apperrors.NewProductNotFoundError(productID)
	}
	return &p, nil
}

func (c *memoryCatalog) UpdateStock(_ context.Context, productID int64, newStock int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return apperrors.NewProductNotFoundError(productID)
	}
	p.Stock = newStock
	c.products[productID] = p
	return nil
}

func (c *memoryCatalog) DecrementStock(ctx context.Context, productID int64, quantity int, _ string) error {
	p, err := c.FetchProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !p.HasStockFor(quantity) {
		return apperrors.NewInsufficientStockError(productID, p.Name, p.Stock, quantity)
	}
	return c.UpdateStock(ctx, productID, p.Stock-quantity)
}

func (c *memoryCatalog) IncrementStock(ctx context.Context, productID int64, quantity int, _ string) error {
	p, err := c.FetchProduct(ctx, productID)
	if err != nil {
		return err
	}
	return c.UpdateStock(ctx, productID, p.Stock+quantity)
}

func (c *memoryCatalog) stock(productID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[productID].Stock
}

func product(id int64, name, price string, stock int) domain.Product {
	return domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}
