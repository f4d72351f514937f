package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ordersvc/internal/domain"
	"ordersvc/internal/errors"
)

const selectOrders = `
	SELECT o.id, o.order_number, o.created_at, o.client_id, o.status, o.total_amount,
	       d.id, d.street_number, d.street, d.city, d.postal_code, d.country,
	       b.id, b.street_number, b.street, b.city, b.postal_code, b.country
	FROM orders o
	JOIN addresses d ON d.id = o.delivery_address_id
	LEFT JOIN addresses b ON b.id = o.billing_address_id
`

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	orders, err := r.query(ctx, selectOrders+` WHERE o.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}
	if len(orders) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	return &orders[0], nil
}

func (r *MySQLOrderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	orders, err := r.query(ctx, selectOrders+` WHERE o.order_number = ?`, number)
	if err != nil {
		return nil, fmt.Errorf("querying order by number: %w", err)
	}
	if len(orders) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with number %s not found", number))
	}
	return &orders[0], nil
}

func (r *MySQLOrderRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := r.query(ctx, selectOrders+` ORDER BY o.id`)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	return orders, nil
}

func (r *MySQLOrderRepository) FindByClientID(ctx context.Context, clientID int64) ([]domain.Order, error) {
	orders, err := r.query(ctx, selectOrders+` WHERE o.client_id = ? ORDER BY o.id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("querying orders by client: %w", err)
	}
	return orders, nil
}

// Insert stores the order row. Address ids must already be resolved.
func (r *MySQLOrderRepository) Insert(ctx context.Context, tx *sql.Tx, o *domain.Order) (int64, error) {
	query := `
		INSERT INTO orders (order_number, created_at, client_id, delivery_address_id, billing_address_id, status, total_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		o.Number, o.CreatedAt.UTC(), o.ClientID, o.DeliveryAddress.ID, billingID(o), string(o.Status), o.TotalAmount,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, errors.NewConflictError(fmt.Sprintf("order number %s already exists", o.Number))
		}
		return 0, fmt.Errorf("inserting order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return id, nil
}

// Update overwrites every column of the order row. Existence is checked by the caller:
// MySQL reports zero affected rows when nothing changed.
func (r *MySQLOrderRepository) Update(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	query := `
		UPDATE orders
		SET order_number = ?, created_at = ?, client_id = ?, delivery_address_id = ?,
		    billing_address_id = ?, status = ?, total_amount = ?
		WHERE id = ?
	`

	_, err := tx.ExecContext(ctx, query,
		o.Number, o.CreatedAt.UTC(), o.ClientID, o.DeliveryAddress.ID, billingID(o), string(o.Status), o.TotalAmount, o.ID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return errors.NewConflictError(fmt.Sprintf("order number %s already exists", o.Number))
		}
		return fmt.Errorf("updating order: %w", err)
	}

	return nil
}

func (r *MySQLOrderRepository) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}

	return nil
}

func (r *MySQLOrderRepository) query(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	lines, err := loadLines(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = []domain.OrderLine{}
		}
	}

	return orders, nil
}

func scanOrder(rows *sql.Rows) (*domain.Order, error) {
	var (
		o        domain.Order
		status   string
		delivery domain.Address
		billID   sql.NullInt64
		billNum  sql.NullInt64
		billStr  sql.NullString
		billCity sql.NullString
		billPC   sql.NullString
		billCtry sql.NullString
	)

	err := rows.Scan(
		&o.ID, &o.Number, &o.CreatedAt, &o.ClientID, &status, &o.TotalAmount,
		&delivery.ID, &delivery.StreetNumber, &delivery.Street, &delivery.City, &delivery.PostalCode, &delivery.Country,
		&billID, &billNum, &billStr, &billCity, &billPC, &billCtry,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning order: %w", err)
	}

	o.Status = domain.OrderStatus(status)
	o.DeliveryAddress = &delivery
	if billID.Valid {
		o.BillingAddress = &domain.Address{
			ID:           billID.Int64,
			StreetNumber: int(billNum.Int64),
			Street:       billStr.String,
			City:         billCity.String,
			PostalCode:   billPC.String,
			Country:      billCtry.String,
		}
	}

	return &o, nil
}

func billingID(o *domain.Order) sql.NullInt64 {
	if o.BillingAddress == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: o.BillingAddress.ID, Valid: true}
}

