package domain

import "github.com/shopspring/decimal"

// Product is the catalog's view of a product, fetched for each operation.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

func (p Product) HasStockFor(quantity int) bool {
	return p.Stock >= quantity
}
