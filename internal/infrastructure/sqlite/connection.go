// Package sqlite opens the embedded database used for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Pure-Go driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const DriverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS addresses (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	street_number INTEGER NOT NULL,
	street        TEXT    NOT NULL,
	city          TEXT    NOT NULL,
	postal_code   TEXT    NOT NULL,
	country       TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_address_fields ON addresses(street_number, postal_code, city);

CREATE TABLE IF NOT EXISTS orders (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	order_number        TEXT     NOT NULL UNIQUE,
	created_at          DATETIME NOT NULL,
	client_id           INTEGER  NOT NULL,
	delivery_address_id INTEGER  NOT NULL REFERENCES addresses(id),
	billing_address_id  INTEGER  REFERENCES addresses(id),
	status              TEXT     NOT NULL DEFAULT 'PENDING',
	total_amount        DECIMAL(14,2) NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id);

CREATE TABLE IF NOT EXISTS order_lines (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id      INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id    INTEGER NOT NULL,
	product_label TEXT    NOT NULL DEFAULT '',
	quantity      INTEGER NOT NULL,
	unit_price    DECIMAL(14,2),
	amount        DECIMAL(14,2) NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);
`

// NewConnection opens the database at path (":memory:" for an in-process one) and applies the schema.
func NewConnection(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// Single writer; an in-memory database also lives on exactly one connection.
	db.SetMaxOpenConns(1)

	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}
