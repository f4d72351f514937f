package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"ordersvc/internal/config"
)

func NewConnection(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func DSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	return mc.FormatDSN()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS addresses (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		street_number INT NOT NULL,
		street VARCHAR(255) NOT NULL,
		city VARCHAR(120) NOT NULL,
		postal_code VARCHAR(20) NOT NULL,
		country VARCHAR(120) NOT NULL,
		INDEX idx_address_fields (street_number, postal_code, city)
	) DEFAULT CHARSET = utf8mb4 COLLATE = utf8mb4_bin`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		order_number VARCHAR(64) NOT NULL UNIQUE,
		created_at DATETIME(6) NOT NULL,
		client_id BIGINT NOT NULL,
		delivery_address_id BIGINT NOT NULL,
		billing_address_id BIGINT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		total_amount DECIMAL(14,2) NOT NULL DEFAULT 0,
		INDEX idx_client (client_id),
		FOREIGN KEY (delivery_address_id) REFERENCES addresses(id),
		FOREIGN KEY (billing_address_id) REFERENCES addresses(id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		product_label VARCHAR(255) NOT NULL DEFAULT '',
		quantity INT NOT NULL,
		unit_price DECIMAL(14,2) NULL,
		amount DECIMAL(14,2) NOT NULL DEFAULT 0,
		INDEX idx_order (order_id),
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	)`,
}

// EnsureSchema creates the order tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
