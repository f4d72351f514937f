package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds_MatchOnlyThemselves(t *testing.T) {
	kinds := map[string]func(error) bool{
		"validation":  func(err error) bool { _, ok := IsValidationError(err); return ok },
		"notFound":    func(err error) bool { _, ok := IsNotFoundError(err); return ok },
		"forbidden":   func(err error) bool { _, ok := IsForbiddenError(err); return ok },
		"conflict":    func(err error) bool { _, ok := IsConflictError(err); return ok },
		"deadlock":    func(err error) bool { _, ok := IsDeadlockError(err); return ok },
		"catalog":     func(err error) bool { _, ok := IsCatalogUnavailableError(err); return ok },
		"productGone": func(err error) bool { _, ok := IsProductNotFoundError(err); return ok },
		"lowStock":    func(err error) bool { _, ok := IsInsufficientStockError(err); return ok },
	}

	tests := []struct {
		kind string
		err  error
		text string
	}{
		{kind: "validation", err: NewValidationError("order must contain at least one line"), text: "order must contain at least one line"},
		{kind: "notFound", err: NewNotFoundError("order 42 not found"), text: "order 42 not found"},
		{kind: "forbidden", err: NewForbiddenError("order does not belong to this client"), text: "order does not belong to this client"},
		{kind: "conflict", err: NewConflictError("order number CMD-1 already exists"), text: "order number CMD-1 already exists"},
		{kind: "deadlock", err: NewDeadlockError("max retries exceeded"), text: "max retries exceeded"},
		{kind: "catalog", err: NewCatalogUnavailableError(5, nil), text: "product catalog unavailable for product 5"},
		{kind: "productGone", err: NewProductNotFoundError(9), text: "product 9 not found in catalog"},
		{kind: "lowStock", err: NewInsufficientStockError(1, "Arabica", 1, 3), text: `insufficient stock for "Arabica" (product 1): available 1, requested 3`},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.err.Error())

			wrapped := fmt.Errorf("handling order: %w", tt.err)
			for kind, matches := range kinds {
				assert.Equal(t, kind == tt.kind, matches(wrapped), "matcher %s", kind)
			}
		})
	}
}

func TestErrorKinds_PlainErrorMatchesNothing(t *testing.T) {
	plain := errors.New("connection reset")

	_, ok := IsValidationError(plain)
	assert.False(t, ok)
	nf, ok := IsNotFoundError(plain)
	assert.False(t, ok)
	assert.Nil(t, nf)
}

func TestValidationError_KeepsDetailsInOrder(t *testing.T) {
	err := NewValidationError("missing product id",
		ValidationDetail{Field: "lines[0].productId", Message: "missing product id"},
		ValidationDetail{Field: "lines[1].quantity", Message: "invalid quantity"},
	)

	require.Len(t, err.Details, 2)
	assert.Equal(t, "lines[0].productId", err.Details[0].Field)
	assert.Equal(t, "lines[1].quantity", err.Details[1].Field)
}

func TestInternalError_WrapsCause(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := NewInternalError("claiming idempotency key", cause)

	assert.Equal(t, "claiming idempotency key: deadline exceeded", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewInternalError("encoding stock change", nil)
	assert.Equal(t, "encoding stock change", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestIsValidationError_Wrapped(t *testing.T) {
	err := fmt.Errorf("creating order: %w", NewValidationError("missing product id"))

	ve, ok := IsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, "missing product id", ve.Message)
}

func TestForbiddenError_IsForbiddenError(t *testing.T) {
	err := NewForbiddenError("order does not belong to client")

	fe, ok := IsForbiddenError(err)
	assert.True(t, ok)
	assert.Equal(t, "order does not belong to client", fe.Error())

	_, ok = IsNotFoundError(err)
	assert.False(t, ok)
}

func TestCatalogUnavailableError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewCatalogUnavailableError(7, cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "product 7")
	assert.Contains(t, err.Error(), "connection refused")

	ce, ok := IsCatalogUnavailableError(fmt.Errorf("fetching: %w", err))
	assert.True(t, ok)
	assert.Equal(t, int64(7), ce.ProductID)
}

func TestProductNotFoundError(t *testing.T) {
	err := NewProductNotFoundError(3)

	pe, ok := IsProductNotFoundError(err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), pe.ProductID)
	assert.Equal(t, "product 3 not found in catalog", err.Error())
}

func TestInsufficientStockError(t *testing.T) {
	err := NewInsufficientStockError(1, "Arabica 1kg", 2, 5)

	ie, ok := IsInsufficientStockError(err)
	assert.True(t, ok)
	assert.Equal(t, 2, ie.Available)
	assert.Equal(t, 5, ie.Requested)
	assert.Contains(t, err.Error(), "Arabica 1kg")
}

func TestDeadlockAndConflictErrors(t *testing.T) {
	_, ok := IsDeadlockError(NewDeadlockError("max retries exceeded"))
	assert.True(t, ok)

	_, ok = IsConflictError(NewConflictError("order number already used"))
	assert.True(t, ok)

	_, ok = IsConflictError(NewDeadlockError("max retries exceeded"))
	assert.False(t, ok)
}
