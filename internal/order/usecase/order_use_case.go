package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
	"ordersvc/internal/order/saga"
	"ordersvc/internal/order/service"
)

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type OrderRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	FindByNumber(ctx context.Context, number string) (*domain.Order, error)
	FindAll(ctx context.Context) ([]domain.Order, error)
	FindByClientID(ctx context.Context, clientID int64) ([]domain.Order, error)
	Insert(ctx context.Context, tx *sql.Tx, o *domain.Order) (int64, error)
	Update(ctx context.Context, tx *sql.Tx, o *domain.Order) error
	Delete(ctx context.Context, tx *sql.Tx, id int64) error
}

type OrderLineRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, line domain.OrderLine) (int64, error)
	Update(ctx context.Context, tx *sql.Tx, line domain.OrderLine) error
	DeleteByIDs(ctx context.Context, tx *sql.Tx, orderID int64, ids []int64) error
	DeleteByOrderID(ctx context.Context, tx *sql.Tx, orderID int64) error
}

type AddressResolver interface {
	Resolve(ctx context.Context, tx *sql.Tx, candidate *domain.Address) (*domain.Address, error)
}

type LineReconciler interface {
	Reconcile(ctx context.Context, existing []domain.OrderLine, desired []domain.LineSpec, mode service.ReconcileMode) (*service.Reconciliation, error)
}

type SagaRunner interface {
	Run(ctx context.Context, sagaID string, steps ...saga.Step) error
}

type ChangePublisher interface {
	OrderCreated(ctx context.Context, o *domain.Order)
	OrderUpdated(ctx context.Context, o *domain.Order)
	OrderDeleted(ctx context.Context, o *domain.Order)
}

type OrderUseCase struct {
	db               TransactionManager
	orderRepo        OrderRepository
	lineRepo         OrderLineRepository
	addresses        AddressResolver
	reconciler       LineReconciler
	ledger           saga.StockLedger
	sagas            SagaRunner
	publisher        ChangePublisher
	logger           *zap.Logger
	maxRetryAttempts int
	txTimeout        time.Duration
	now              func() time.Time
	newOperationID   func() string
	sleep            func(ctx context.Context, d time.Duration) error
}

func NewOrderUseCase(
	db TransactionManager,
	orderRepo OrderRepository,
	lineRepo OrderLineRepository,
	addresses AddressResolver,
	reconciler LineReconciler,
	ledger saga.StockLedger,
	sagas SagaRunner,
	publisher ChangePublisher,
	logger *zap.Logger,
	maxRetryAttempts int,
	txTimeout time.Duration,
) *OrderUseCase {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &OrderUseCase{
		db:               db,
		orderRepo:        orderRepo,
		lineRepo:         lineRepo,
		addresses:        addresses,
		reconciler:       reconciler,
		ledger:           ledger,
		sagas:            sagas,
		publisher:        publisher,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
		txTimeout:        txTimeout,
		now:              time.Now,
		newOperationID:   uuid.NewString,
		sleep:            sleepContext,
	}
}

var tracer = otel.Tracer("ordersvc/order")

// Create reserves stock for the catalog-priced lines before storing the order.
func (uc *OrderUseCase) Create(ctx context.Context, spec domain.OrderSpec) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.Create")
	defer func() { endSpan(span, err) }()

	if err := validateCreate(spec); err != nil {
		return nil, err
	}

	now := uc.now()
	order := &domain.Order{
		Number:          fmt.Sprintf("CMD-%d", now.UnixMilli()),
		CreatedAt:       now,
		ClientID:        *spec.ClientID,
		DeliveryAddress: spec.DeliveryAddress,
		BillingAddress:  spec.BillingAddress,
		Status:          domain.OrderStatusPending,
	}
	if spec.OrderNumber != nil && *spec.OrderNumber != "" {
		order.Number = *spec.OrderNumber
	}
	if spec.CreatedAt != nil {
		order.CreatedAt = *spec.CreatedAt
	}
	if spec.Status != nil {
		order.Status = *spec.Status
	}

	uc.logger.Info("create order started", zap.String("orderNumber", order.Number), zap.Int64("clientId", order.ClientID), zap.Int("lineCount", len(spec.Lines)))

	rec, err := uc.reconciler.Reconcile(ctx, nil, spec.Lines, service.ModeAllNew)
	if err != nil {
		return nil, err
	}
	order.Lines = rec.Lines
	order.RecalculateTotal()

	var saved *domain.Order
	persist := func(ctx context.Context, tx *sql.Tx) error {
		o := order.Clone()
		if err := uc.resolveAddresses(ctx, tx, o, true); err != nil {
			return err
		}

		id, err := uc.orderRepo.Insert(ctx, tx, o)
		if err != nil {
			return err
		}
		o.ID = id

		for i := range o.Lines {
			o.Lines[i].OrderID = id
			lineID, err := uc.lineRepo.Insert(ctx, tx, o.Lines[i])
			if err != nil {
				return err
			}
			o.Lines[i].ID = lineID
		}

		saved = o
		return nil
	}

	opID := uc.newOperationID()
	span.SetAttributes(attribute.String("order.operation_id", opID))
	if err := uc.runSaga(ctx, opID, rec, persist); err != nil {
		return nil, err
	}

	uc.logger.Info("order created", zap.Int64("orderId", saved.ID), zap.String("orderNumber", saved.Number), zap.String("totalAmount", saved.TotalAmount.String()))
	uc.publisher.OrderCreated(ctx, saved)

	return saved.Clone(), nil
}

// Update overwrites the supplied fields of an order. Lines are reconciled by identity only
// when the request carries a line list; an absent list keeps the stored lines untouched.
func (uc *OrderUseCase) Update(ctx context.Context, id int64, spec domain.OrderSpec) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer func() { endSpan(span, err) }()

	existing, err := uc.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	if spec.OrderNumber != nil && *spec.OrderNumber != "" {
		updated.Number = *spec.OrderNumber
	}
	if spec.ClientID != nil {
		updated.ClientID = *spec.ClientID
	}
	if spec.Status != nil {
		updated.Status = *spec.Status
	}
	if spec.DeliveryAddress != nil {
		updated.DeliveryAddress = spec.DeliveryAddress
	}
	if spec.BillingAddress != nil {
		updated.BillingAddress = spec.BillingAddress
	}

	uc.logger.Info("update order started", zap.Int64("orderId", id), zap.Bool("linesProvided", spec.LinesProvided))

	rec := &service.Reconciliation{Lines: updated.Lines}
	if spec.LinesProvided {
		rec, err = uc.reconciler.Reconcile(ctx, existing.Lines, spec.Lines, service.ModeMatchExisting)
		if err != nil {
			return nil, err
		}
		updated.Lines = rec.Lines
	}
	updated.RecalculateTotal()

	resolve := spec.DeliveryAddress != nil || spec.BillingAddress != nil
	saved, err := uc.store(ctx, updated, rec, resolve)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order updated", zap.Int64("orderId", saved.ID), zap.Int("droppedLines", len(rec.Dropped)), zap.String("totalAmount", saved.TotalAmount.String()))
	uc.publisher.OrderUpdated(ctx, saved)

	return saved.Clone(), nil
}

// ReplaceLines reconciles the order's lines against caller-priced lines without consulting the catalog.
func (uc *OrderUseCase) ReplaceLines(ctx context.Context, id int64, lines []domain.LineSpec) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.ReplaceLines", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer func() { endSpan(span, err) }()

	existing, err := uc.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rec, err := uc.reconciler.Reconcile(ctx, existing.Lines, lines, service.ModeTrusted)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	updated.Lines = rec.Lines
	updated.RecalculateTotal()

	saved, err := uc.store(ctx, updated, rec, false)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order lines replaced", zap.Int64("orderId", saved.ID), zap.Int("lineCount", len(saved.Lines)))
	uc.publisher.OrderUpdated(ctx, saved)

	return saved.Clone(), nil
}

// Delete removes an order and its lines. Stock is not restored.
func (uc *OrderUseCase) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer func() { endSpan(span, err) }()

	existing, err := uc.orderRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	err = uc.persistWithRetry(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := uc.lineRepo.DeleteByOrderID(ctx, tx, id); err != nil {
			return err
		}
		return uc.orderRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	uc.logger.Info("order deleted", zap.Int64("orderId", id))
	uc.publisher.OrderDeleted(ctx, existing)

	return nil
}

func (uc *OrderUseCase) Get(ctx context.Context, id int64) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer func() { endSpan(span, err) }()

	return uc.orderRepo.FindByID(ctx, id)
}

func (uc *OrderUseCase) GetByNumber(ctx context.Context, number string) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.GetByNumber", trace.WithAttributes(attribute.String("order.number", number)))
	defer func() { endSpan(span, err) }()

	return uc.orderRepo.FindByNumber(ctx, number)
}

func (uc *OrderUseCase) List(ctx context.Context) (_ []domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.List")
	defer func() { endSpan(span, err) }()

	return uc.orderRepo.FindAll(ctx)
}

func (uc *OrderUseCase) ListByClient(ctx context.Context, clientID int64) (_ []domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.ListByClient", trace.WithAttributes(attribute.Int64("client.id", clientID)))
	defer func() { endSpan(span, err) }()

	return uc.orderRepo.FindByClientID(ctx, clientID)
}

// LinesForClientOrder returns the lines of an order only to the client that owns it.
func (uc *OrderUseCase) LinesForClientOrder(ctx context.Context, clientID, orderID int64) (_ []domain.OrderLine, err error) {
	ctx, span := tracer.Start(ctx, "OrderUseCase.LinesForClientOrder",
		trace.WithAttributes(attribute.Int64("client.id", clientID), attribute.Int64("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	order, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.ClientID != clientID {
		uc.logger.Warn("client order mismatch", zap.Int64("orderId", orderID), zap.Int64("clientId", clientID))
		return nil, apperrors.NewForbiddenError("order does not belong to this client")
	}

	return order.Lines, nil
}

// store persists an updated order: the row, matched lines, new lines and dropped lines.
func (uc *OrderUseCase) store(ctx context.Context, updated *domain.Order, rec *service.Reconciliation, resolveAddresses bool) (*domain.Order, error) {
	var saved *domain.Order
	persist := func(ctx context.Context, tx *sql.Tx) error {
		o := updated.Clone()
		if resolveAddresses {
			if err := uc.resolveAddresses(ctx, tx, o, false); err != nil {
				return err
			}
		}

		if err := uc.orderRepo.Update(ctx, tx, o); err != nil {
			return err
		}

		for i := range o.Lines {
			o.Lines[i].OrderID = o.ID
			if o.Lines[i].ID != 0 {
				if err := uc.lineRepo.Update(ctx, tx, o.Lines[i]); err != nil {
					return err
				}
				continue
			}
			lineID, err := uc.lineRepo.Insert(ctx, tx, o.Lines[i])
			if err != nil {
				return err
			}
			o.Lines[i].ID = lineID
		}

		dropped := make([]int64, 0, len(rec.Dropped))
		for _, l := range rec.Dropped {
			dropped = append(dropped, l.ID)
		}
		if err := uc.lineRepo.DeleteByIDs(ctx, tx, o.ID, dropped); err != nil {
			return err
		}

		saved = o
		return nil
	}

	if err := uc.runSaga(ctx, uc.newOperationID(), rec, persist); err != nil {
		return nil, err
	}
	return saved, nil
}

// runSaga reserves stock for every consumed product, in product id order, then persists.
// A persistence failure releases what was reserved.
func (uc *OrderUseCase) runSaga(ctx context.Context, opID string, rec *service.Reconciliation, persist func(ctx context.Context, tx *sql.Tx) error) error {
	productIDs := rec.ConsumedProducts()
	steps := make([]saga.Step, 0, len(productIDs)+1)
	for _, productID := range productIDs {
		steps = append(steps, saga.NewReserveStockStep(uc.ledger, opID, productID, rec.Consumption[productID]))
	}
	steps = append(steps, &saga.FuncStep{
		StepName: "persist_order",
		ExecuteFunc: func(ctx context.Context) error {
			return uc.persistWithRetry(ctx, persist)
		},
	})

	return uc.sagas.Run(ctx, opID, steps...)
}

// resolveAddresses replaces the order's addresses by their stored rows.
// The delivery address is mandatory only when required is set.
func (uc *OrderUseCase) resolveAddresses(ctx context.Context, tx *sql.Tx, o *domain.Order, required bool) error {
	if o.DeliveryAddress != nil || required {
		delivery, err := uc.addresses.Resolve(ctx, tx, o.DeliveryAddress)
		if err != nil {
			return err
		}
		o.DeliveryAddress = delivery
	}

	if o.BillingAddress != nil {
		billing, err := uc.addresses.Resolve(ctx, tx, o.BillingAddress)
		if err != nil {
			return err
		}
		o.BillingAddress = billing
	}

	return nil
}

func (uc *OrderUseCase) persistWithRetry(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	maxAttempts := uc.maxRetryAttempts
	// Backoff intervals: attempt 1 (0ms), attempt 2 (100ms), attempt 3 and later (200ms).
	backoffs := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := uc.inTransaction(ctx, fn)
		if err == nil {
			return nil
		}

		if !isDeadlockError(err) {
			return err
		}

		if attempt == maxAttempts {
			break
		}

		// ±20% jitter around the base backoff
		base := backoffs[min(attempt, len(backoffs)-1)]
		wait := time.Duration(float64(base) * (0.8 + rand.Float64()*0.4))
		uc.logger.Warn("deadlock detected, retrying", zap.Int("attempt", attempt), zap.Int("maxAttempts", maxAttempts), zap.Duration("backoff", wait))
		if err := uc.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return apperrors.NewDeadlockError("max retries exceeded")
}

func (uc *OrderUseCase) inTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, err := uc.db.BeginTx(txCtx, nil)
	if err != nil {
		uc.logger.Error("failed to begin transaction", zap.Error(err))
		return err
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		uc.logger.Error("failed to commit transaction", zap.Error(err))
		return err
	}
	return nil
}

func validateCreate(spec domain.OrderSpec) error {
	var details []apperrors.ValidationDetail
	if spec.ClientID == nil {
		details = append(details, apperrors.ValidationDetail{Field: "clientId", Message: "client id is required"})
	}
	if len(spec.Lines) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "lines", Message: "order must contain at least one line"})
	}
	if spec.DeliveryAddress == nil {
		details = append(details, apperrors.ValidationDetail{Field: "deliveryAddress", Message: "delivery address is required"})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError(details[0].Message, details...)
	}
	return nil
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
