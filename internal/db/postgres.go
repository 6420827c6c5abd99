package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

type PostgresDB struct {
	Conn *sql.DB
}

func NewPostgresDB(host string, port int, user, password, dbname string) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Connected to PostgreSQL")
	return &PostgresDB{Conn: conn}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS checkout_records (
	id              UUID PRIMARY KEY,
	session_id      TEXT NOT NULL,
	table_id        INTEGER NOT NULL,
	table_number    INTEGER NOT NULL,
	subtotal        BIGINT NOT NULL,
	tax_amount      BIGINT NOT NULL,
	total           BIGINT NOT NULL,
	received_amount BIGINT,
	change_amount   BIGINT NOT NULL,
	shortfall       BIGINT NOT NULL DEFAULT 0,
	outcome         TEXT NOT NULL,
	steps           JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE checkout_records ADD COLUMN IF NOT EXISTS shortfall BIGINT NOT NULL DEFAULT 0;
CREATE INDEX IF NOT EXISTS idx_checkout_records_table
	ON checkout_records (table_number, created_at DESC);
`

// EnsureSchema creates the ledger table when missing
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() error {
	return db.Conn.Close()
}
