package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/orderbase/checkout/internal/models"
)

type CheckoutRepository struct {
	db *sql.DB
}

func NewCheckoutRepository(database *PostgresDB) *CheckoutRepository {
	return &CheckoutRepository{db: database.Conn}
}

const checkoutColumns = `id, session_id, table_id, table_number, subtotal, tax_amount, total,
	received_amount, change_amount, shortfall, outcome, steps, created_at`

// Create inserts a ledger record. Inserting the same id twice is a no-op,
// so redelivered events are harmless.
func (r *CheckoutRepository) Create(ctx context.Context, rec models.CheckoutRecord) error {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	var received sql.NullInt64
	if rec.Received != nil {
		received = sql.NullInt64{Int64: *rec.Received, Valid: true}
	}

	query := `
		INSERT INTO checkout_records (` + checkoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.SessionID, rec.TableID, rec.TableNumber,
		rec.Subtotal, rec.TaxAmount, rec.Total,
		received, rec.Change, rec.Shortfall, rec.Outcome, steps, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert checkout record: %w", err)
	}
	return nil
}

// GetByID returns a single record, or nil when it does not exist
func (r *CheckoutRepository) GetByID(ctx context.Context, id string) (*models.CheckoutRecord, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkout_records WHERE id = $1`

	rec, err := scanCheckout(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkout record: %w", err)
	}
	return rec, nil
}

// ListByTable returns the newest records of a table first
func (r *CheckoutRepository) ListByTable(ctx context.Context, tableNumber, limit int) ([]models.CheckoutRecord, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkout_records
		WHERE table_number = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, tableNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout records: %w", err)
	}
	defer rows.Close()

	records := []models.CheckoutRecord{}
	for rows.Next() {
		rec, err := scanCheckout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkout record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checkout records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckout(row scanner) (*models.CheckoutRecord, error) {
	var rec models.CheckoutRecord
	var received sql.NullInt64
	var steps []byte

	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.TableID, &rec.TableNumber,
		&rec.Subtotal, &rec.TaxAmount, &rec.Total,
		&received, &rec.Change, &rec.Shortfall, &rec.Outcome, &steps, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if received.Valid {
		v := received.Int64
		rec.Received = &v
	}
	if err := json.Unmarshal(steps, &rec.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}
	return &rec, nil
}
