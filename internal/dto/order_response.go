package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"ordersvc/internal/domain"
)

// OrderResponse is the order snapshot returned over HTTP and published on the bus.
type OrderResponse struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	CreatedAt       time.Time       `json:"createdAt"`
	ClientID        int64           `json:"clientId"`
	DeliveryAddress *AddressDTO     `json:"deliveryAddress"`
	BillingAddress  *AddressDTO     `json:"billingAddress,omitempty"`
	Status          string          `json:"status"`
	Lines           []LineResponse  `json:"lines"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

type LineResponse struct {
	ID           int64            `json:"id"`
	ProductID    int64            `json:"productId"`
	ProductLabel string           `json:"productLabel"`
	Quantity     int              `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unitPrice"`
	Amount       decimal.Decimal  `json:"amount"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.Number,
		CreatedAt:       o.CreatedAt,
		ClientID:        o.ClientID,
		DeliveryAddress: newAddressDTO(o.DeliveryAddress),
		BillingAddress:  newAddressDTO(o.BillingAddress),
		Status:          string(o.Status),
		Lines:           NewLineResponses(o.Lines),
		TotalAmount:     o.TotalAmount,
	}
}

func NewOrderResponses(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = NewOrderResponse(&orders[i])
	}
	return out
}

func NewLineResponses(lines []domain.OrderLine) []LineResponse {
	out := make([]LineResponse, len(lines))
	for i, l := range lines {
		out[i] = LineResponse{
			ID:           l.ID,
			ProductID:    l.ProductID,
			ProductLabel: l.ProductLabel,
			Quantity:     l.Quantity,
			Amount:       l.Amount,
		}
		if l.UnitPrice.Valid {
			price := l.UnitPrice.Decimal
			out[i].UnitPrice = &price
		}
	}
	return out
}

func newAddressDTO(a *domain.Address) *AddressDTO {
	if a == nil {
		return nil
	}
	return &AddressDTO{
		ID:           a.ID,
		StreetNumber: a.StreetNumber,
		Street:       a.Street,
		City:         a.City,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}
