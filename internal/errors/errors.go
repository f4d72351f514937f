package errors

import (
	stderrors "errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if stderrors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func IsForbiddenError(err error) (*ForbiddenError, bool) {
	var fe *ForbiddenError
	if stderrors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// DeadlockError is returned once the persistence retries are exhausted.
type DeadlockError struct {
	Message string
}

func (e *DeadlockError) Error() string {
	return e.Message
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	var de *DeadlockError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

// CatalogUnavailableError reports a failed call to the product service.
type CatalogUnavailableError struct {
	ProductID int64
	Cause     error
}

func (e *CatalogUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("product catalog unavailable for product %d: %v", e.ProductID, e.Cause)
	}
	return fmt.Sprintf("product catalog unavailable for product %d", e.ProductID)
}

func (e *CatalogUnavailableError) Unwrap() error {
	return e.Cause
}

func NewCatalogUnavailableError(productID int64, cause error) *CatalogUnavailableError {
	return &CatalogUnavailableError{ProductID: productID, Cause: cause}
}

func IsCatalogUnavailableError(err error) (*CatalogUnavailableError, bool) {
	var ce *CatalogUnavailableError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found in catalog", e.ProductID)
}

func NewProductNotFoundError(productID int64) *ProductNotFoundError {
	return &ProductNotFoundError{ProductID: productID}
}

func IsProductNotFoundError(err error) (*ProductNotFoundError, bool) {
	var pe *ProductNotFoundError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (product %d): available %d, requested %d",
		e.ProductName, e.ProductID, e.Available, e.Requested)
}

func NewInsufficientStockError(productID int64, productName string, available, requested int) *InsufficientStockError {
	return &InsufficientStockError{
		ProductID:   productID,
		ProductName: productName,
		Available:   available,
		Requested:   requested,
	}
}

func IsInsufficientStockError(err error) (*InsufficientStockError, bool) {
	var ie *InsufficientStockError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
