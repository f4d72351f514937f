package domain

import "github.com/shopspring/decimal"

type OrderLine struct {
	ID           int64
	OrderID      int64
	ProductID    int64
	ProductLabel string
	Quantity     int
	UnitPrice    decimal.NullDecimal
	Amount       decimal.Decimal
}

// ComputeAmount sets Amount to UnitPrice * Quantity, or zero when either factor is missing or not positive.
func (l *OrderLine) ComputeAmount() {
	if l.Quantity <= 0 || !l.UnitPrice.Valid || !l.UnitPrice.Decimal.IsPositive() {
		l.Amount = decimal.Zero
		return
	}
	l.Amount = l.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l *OrderLine) SetUnitPrice(price decimal.Decimal) {
	l.UnitPrice = decimal.NewNullDecimal(price)
}
