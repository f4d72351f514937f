package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSpec is the resolved input of a create or update. Nil fields were not supplied by the caller.
// LinesProvided distinguishes an absent line list from an explicitly empty one.
type OrderSpec struct {
	OrderNumber     *string
	CreatedAt       *time.Time
	ClientID        *int64
	Status          *OrderStatus
	DeliveryAddress *Address
	BillingAddress  *Address
	Lines           []LineSpec
	LinesProvided   bool
}

type LineSpec struct {
	ID           *int64
	ProductID    *int64
	ProductLabel *string
	Quantity     *int
	UnitPrice    *decimal.Decimal
}
