package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
)

type AddressRepository interface {
	FindByFields(ctx context.Context, tx *sql.Tx, a domain.Address) (*domain.Address, error)
	Insert(ctx context.Context, tx *sql.Tx, a domain.Address) (int64, error)
}

// AddressResolver shares identical addresses between orders instead of duplicating rows.
type AddressResolver struct {
	repo   AddressRepository
	logger *zap.Logger
}

func NewAddressResolver(repo AddressRepository, logger *zap.Logger) *AddressResolver {
	return &AddressResolver{repo: repo, logger: logger}
}

// Resolve returns the stored address with exactly the candidate's fields, inserting it when none exists.
func (r *AddressResolver) Resolve(ctx context.Context, tx *sql.Tx, candidate *domain.Address) (*domain.Address, error) {
	if candidate == nil {
		return nil, apperrors.NewValidationError("delivery address is required", apperrors.ValidationDetail{
			Field:   "deliveryAddress",
			Message: "delivery address is required",
		})
	}

	existing, err := r.repo.FindByFields(ctx, tx, *candidate)
	if err == nil {
		return existing, nil
	}
	if _, ok := apperrors.IsNotFoundError(err); !ok {
		return nil, err
	}

	stored := *candidate
	stored.ID, err = r.repo.Insert(ctx, tx, stored)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("address created", zap.Int64("addressId", stored.ID))
	return &stored, nil
}
