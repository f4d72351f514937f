package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"ordersvc/internal/domain"
	"ordersvc/internal/errors"
)

type MySQLAddressRepository struct {
	db *sql.DB
}

func NewMySQLAddressRepository(db *sql.DB) *MySQLAddressRepository {
	return &MySQLAddressRepository{db: db}
}

// FindByFields looks up an address by exact match on all five fields.
func (r *MySQLAddressRepository) FindByFields(ctx context.Context, tx *sql.Tx, a domain.Address) (*domain.Address, error) {
	query := `
		SELECT id, street_number, street, city, postal_code, country
		FROM addresses
		WHERE street_number = ? AND street = ? AND city = ? AND postal_code = ? AND country = ?
		ORDER BY id
		LIMIT 1
	`

	var found domain.Address
	err := tx.QueryRowContext(ctx, query, a.StreetNumber, a.Street, a.City, a.PostalCode, a.Country).Scan(
		&found.ID, &found.StreetNumber, &found.Street, &found.City, &found.PostalCode, &found.Country,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("address not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying address by fields: %w", err)
	}

	return &found, nil
}

func (r *MySQLAddressRepository) Insert(ctx context.Context, tx *sql.Tx, a domain.Address) (int64, error) {
	query := `INSERT INTO addresses (street_number, street, city, postal_code, country) VALUES (?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query, a.StreetNumber, a.Street, a.City, a.PostalCode, a.Country)
	if err != nil {
		return 0, fmt.Errorf("inserting address: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return id, nil
}
