package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
)

type OrderRequest struct {
	OrderNumber     *string       `json:"orderNumber"`
	CreatedAt       *time.Time    `json:"createdAt"`
	ClientID        *int64        `json:"clientId"`
	Status          *string       `json:"status"`
	DeliveryAddress *AddressDTO   `json:"deliveryAddress"`
	BillingAddress  *AddressDTO   `json:"billingAddress"`
	Lines           []LineRequest `json:"lines"`
}

type LineRequest struct {
	ID           *int64           `json:"id"`
	ProductID    *int64           `json:"productId"`
	ProductLabel *string          `json:"productLabel"`
	Quantity     *int             `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unitPrice"`
}

type ReplaceLinesRequest struct {
	Lines []LineRequest `json:"lines"`
}

type AddressDTO struct {
	ID           int64  `json:"id,omitempty"`
	StreetNumber int    `json:"streetNumber"`
	Street       string `json:"street"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

// ToSpec resolves the request into the single input shape the order use case accepts.
// A JSON "lines": [] marks the lines as provided; an absent or null list does not.
func (r OrderRequest) ToSpec() (domain.OrderSpec, error) {
	spec := domain.OrderSpec{
		OrderNumber:     r.OrderNumber,
		CreatedAt:       r.CreatedAt,
		ClientID:        r.ClientID,
		DeliveryAddress: r.DeliveryAddress.toDomain(),
		BillingAddress:  r.BillingAddress.toDomain(),
		Lines:           ToLineSpecs(r.Lines),
		LinesProvided:   r.Lines != nil,
	}

	if r.Status != nil {
		status, err := domain.ParseOrderStatus(*r.Status)
		if err != nil {
			return domain.OrderSpec{}, apperrors.NewValidationError("invalid status", apperrors.ValidationDetail{
				Field:   "status",
				Message: fmt.Sprintf("status must be one of %v", domain.OrderStatuses()),
			})
		}
		spec.Status = &status
	}

	return spec, nil
}

func ToLineSpecs(lines []LineRequest) []domain.LineSpec {
	if lines == nil {
		return nil
	}
	specs := make([]domain.LineSpec, len(lines))
	for i, l := range lines {
		specs[i] = domain.LineSpec{
			ID:           l.ID,
			ProductID:    l.ProductID,
			ProductLabel: l.ProductLabel,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
		}
	}
	return specs
}

func (a *AddressDTO) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		StreetNumber: a.StreetNumber,
		Street:       a.Street,
		City:         a.City,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}
