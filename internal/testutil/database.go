package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"ordersvc/internal/infrastructure/mysql"
	"ordersvc/internal/infrastructure/sqlite"
)

// SetupTestDB returns an in-memory SQLite database with the order schema applied.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.NewConnection(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// SetupMySQLTestDB connects to the MySQL instance named by ORDERSVC_TEST_MYSQL_DSN
// (default root:@tcp(localhost:3306)/orders_test) and skips the test when it is unreachable.
func SetupMySQLTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("ORDERSVC_TEST_MYSQL_DSN")
	if dsn == "" {
		dsn = "root:@tcp(localhost:3306)/orders_test?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Skipf("test database not available: %v", err)
	}

	if err := mysql.EnsureSchema(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("failed to create tables: %v", err)
	}

	t.Cleanup(func() { CleanupTestDB(t, db) })

	return db
}

// CleanupTestDB empties the order tables, children first, and closes the connection.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	tables := []string{"order_lines", "orders", "addresses"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// InsertAddress stores an address row directly and returns its id.
func InsertAddress(t *testing.T, db *sql.DB, streetNumber int, street, city, postalCode, country string) int64 {
	t.Helper()

	res, err := db.Exec(
		`INSERT INTO addresses (street_number, street, city, postal_code, country) VALUES (?, ?, ?, ?, ?)`,
		streetNumber, street, city, postalCode, country,
	)
	if err != nil {
		t.Fatalf("failed to insert address: %v", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read address id: %v", err)
	}
	return id
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
