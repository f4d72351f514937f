package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID              int64
	Number          string
	CreatedAt       time.Time
	ClientID        int64
	DeliveryAddress *Address
	BillingAddress  *Address
	Status          OrderStatus
	Lines           []OrderLine
	TotalAmount     decimal.Decimal
}

// RecalculateTotal recomputes every line amount and sets TotalAmount to their sum.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for i := range o.Lines {
		o.Lines[i].ComputeAmount()
		total = total.Add(o.Lines[i].Amount)
	}
	o.TotalAmount = total
}

// Clone returns a deep copy so callers can mutate lines without touching the original.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.DeliveryAddress != nil {
		a := *o.DeliveryAddress
		c.DeliveryAddress = &a
	}
	if o.BillingAddress != nil {
		a := *o.BillingAddress
		c.BillingAddress = &a
	}
	c.Lines = make([]OrderLine, len(o.Lines))
	copy(c.Lines, o.Lines)
	return &c
}
