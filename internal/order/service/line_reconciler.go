package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
)

type ProductFetcher interface {
	FetchProduct(ctx context.Context, productID int64) (*domain.Product, error)
}

type ReconcileMode int

const (
	// ModeAllNew builds every line from the catalog; used on create.
	ModeAllNew ReconcileMode = iota
	// ModeMatchExisting updates lines whose id matches an existing line and creates the rest.
	ModeMatchExisting
	// ModeTrusted takes label and price from the caller without calling the catalog.
	ModeTrusted
)

func (m ReconcileMode) String() string {
	switch m {
	case ModeAllNew:
		return "all-new"
	case ModeMatchExisting:
		return "match-existing"
	case ModeTrusted:
		return "trusted"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type Reconciliation struct {
	Lines   []domain.OrderLine
	Dropped []domain.OrderLine
	// Consumption is the total desired quantity per product id.
	Consumption map[int64]int
	Total       decimal.Decimal
}

// ConsumedProducts returns the consumed product ids in ascending order.
func (r *Reconciliation) ConsumedProducts() []int64 {
	ids := make([]int64, 0, len(r.Consumption))
	for id := range r.Consumption {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type LineReconciler struct {
	catalog     ProductFetcher
	concurrency int
	logger      *zap.Logger
}

func NewLineReconciler(catalog ProductFetcher, concurrency int, logger *zap.Logger) *LineReconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &LineReconciler{
		catalog:     catalog,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Reconcile computes the new line set of an order from its existing lines and the desired ones.
// Existing lines are never modified; matched lines are updated on copies.
func (r *LineReconciler) Reconcile(
	ctx context.Context,
	existing []domain.OrderLine,
	desired []domain.LineSpec,
	mode ReconcileMode,
) (*Reconciliation, error) {
	if err := validateLines(desired); err != nil {
		return nil, err
	}

	var products map[int64]*domain.Product
	consumption := make(map[int64]int)
	if mode != ModeTrusted {
		for _, d := range desired {
			consumption[*d.ProductID] += *d.Quantity
		}

		var err error
		products, err = r.fetchProducts(ctx, consumption)
		if err != nil {
			return nil, err
		}

		if err := checkStock(desired, products, consumption); err != nil {
			return nil, err
		}
	}

	existingByID := make(map[int64]int, len(existing))
	if mode != ModeAllNew {
		for i, l := range existing {
			existingByID[l.ID] = i
		}
	}
	matched := make(map[int64]bool, len(existing))

	lines := make([]domain.OrderLine, 0, len(desired))
	for _, d := range desired {
		var line domain.OrderLine
		if d.ID != nil {
			if idx, ok := existingByID[*d.ID]; ok && !matched[*d.ID] {
				line = existing[idx]
				matched[*d.ID] = true
			}
		}

		line.ProductID = *d.ProductID
		line.Quantity = *d.Quantity

		if mode == ModeTrusted {
			line.ProductLabel = ""
			if d.ProductLabel != nil {
				line.ProductLabel = *d.ProductLabel
			}
			line.UnitPrice = decimal.NullDecimal{}
			if d.UnitPrice != nil {
				line.SetUnitPrice(*d.UnitPrice)
			}
		} else {
			product := products[*d.ProductID]
			line.ProductLabel = product.Name
			if d.UnitPrice != nil {
				line.SetUnitPrice(*d.UnitPrice)
			} else {
				line.SetUnitPrice(product.Price)
			}
		}

		line.ComputeAmount()
		lines = append(lines, line)
	}

	var dropped []domain.OrderLine
	for _, l := range existing {
		if mode == ModeAllNew || !matched[l.ID] {
			if l.ID != 0 {
				dropped = append(dropped, l)
			}
		}
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}

	r.logger.Debug("lines reconciled",
		zap.Stringer("mode", mode),
		zap.Int("lineCount", len(lines)),
		zap.Int("droppedCount", len(dropped)),
		zap.String("total", total.String()),
	)

	return &Reconciliation{
		Lines:       lines,
		Dropped:     dropped,
		Consumption: consumption,
		Total:       total,
	}, nil
}

func validateLines(desired []domain.LineSpec) error {
	var details []apperrors.ValidationDetail
	for i, d := range desired {
		if d.ProductID == nil {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("lines[%d].productId", i),
				Message: "missing product id",
			})
		}
		if d.Quantity == nil || *d.Quantity <= 0 {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("lines[%d].quantity", i),
				Message: "invalid quantity",
			})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError(details[0].Message, details...)
	}
	return nil
}

func (r *LineReconciler) fetchProducts(ctx context.Context, consumption map[int64]int) (map[int64]*domain.Product, error) {
	var mu sync.Mutex
	products := make(map[int64]*domain.Product, len(consumption))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for productID := range consumption {
		productID := productID
		g.Go(func() error {
			p, err := r.catalog.FetchProduct(gctx, productID)
			if err != nil {
				return err
			}
			mu.Lock()
			products[productID] = p
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

// checkStock rejects a line exceeding the product's stock, and a product whose lines together exceed it.
func checkStock(desired []domain.LineSpec, products map[int64]*domain.Product, consumption map[int64]int) error {
	for _, d := range desired {
		p := products[*d.ProductID]
		if !p.HasStockFor(*d.Quantity) {
			return apperrors.NewInsufficientStockError(p.ID, p.Name, p.Stock, *d.Quantity)
		}
	}
	for productID, qty := range consumption {
		p := products[productID]
		if !p.HasStockFor(qty) {
			return apperrors.NewInsufficientStockError(p.ID, p.Name, p.Stock, qty)
		}
	}
	return nil
}
