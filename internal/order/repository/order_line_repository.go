package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ordersvc/internal/domain"
)

type MySQLOrderLineRepository struct {
	db *sql.DB
}

func NewMySQLOrderLineRepository(db *sql.DB) *MySQLOrderLineRepository {
	return &MySQLOrderLineRepository{db: db}
}

func (r *MySQLOrderLineRepository) Insert(ctx context.Context, tx *sql.Tx, line domain.OrderLine) (int64, error) {
	query := `
		INSERT INTO order_lines (order_id, product_id, product_label, quantity, unit_price, amount)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		line.OrderID, line.ProductID, line.ProductLabel, line.Quantity, line.UnitPrice, line.Amount,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting order line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return id, nil
}

func (r *MySQLOrderLineRepository) Update(ctx context.Context, tx *sql.Tx, line domain.OrderLine) error {
	query := `
		UPDATE order_lines
		SET product_id = ?, product_label = ?, quantity = ?, unit_price = ?, amount = ?
		WHERE id = ? AND order_id = ?
	`

	if _, err := tx.ExecContext(ctx, query,
		line.ProductID, line.ProductLabel, line.Quantity, line.UnitPrice, line.Amount, line.ID, line.OrderID,
	); err != nil {
		return fmt.Errorf("updating order line %d: %w", line.ID, err)
	}

	return nil
}

// DeleteByIDs removes the given lines of one order.
func (r *MySQLOrderLineRepository) DeleteByIDs(ctx context.Context, tx *sql.Tx, orderID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM order_lines WHERE order_id = ? AND id IN (%s)`, placeholders(len(ids)))
	args := append([]any{orderID}, int64Args(ids)...)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting order lines: %w", err)
	}

	return nil
}

func (r *MySQLOrderLineRepository) DeleteByOrderID(ctx context.Context, tx *sql.Tx, orderID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("deleting lines of order %d: %w", orderID, err)
	}
	return nil
}

// loadLines fetches the lines of every given order in one query, keyed by order id.
func loadLines(ctx context.Context, q queryer, orderIDs []int64) (map[int64][]domain.OrderLine, error) {
	out := make(map[int64][]domain.OrderLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT id, order_id, product_id, product_label, quantity, unit_price, amount
		FROM order_lines
		WHERE order_id IN (%s)
		ORDER BY order_id, id
	`, placeholders(len(orderIDs)))

	rows, err := q.QueryContext(ctx, query, int64Args(orderIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductLabel, &l.Quantity, &l.UnitPrice, &l.Amount); err != nil {
			return nil, fmt.Errorf("scanning order line: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order lines: %w", err)
	}

	return out, nil
}
