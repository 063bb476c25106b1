package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"finance-tracker/internal/models"
)

const transactionColumns = "id, user_id, type, amount, category, occurred_on, description, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var kind string
	if err := row.Scan(&t.ID, &t.UserID, &kind, &t.Amount, &t.Category, &t.Date, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Kind = models.Kind(kind)
	return &t, nil
}

// CreateTransaction validates t, assigns its id and timestamps and inserts it.
func (db *DB) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("generate transaction id: %w", err)
	}
	now := db.timestamp()
	t.ID = id.String()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.UserID, string(t.Kind), t.Amount.String(), t.Category, t.Date, t.Description, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTransaction retrieves a single transaction by ID.
func (db *DB) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?",
		id,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return t, err
}

// ListTransactionsByUser retrieves every transaction owned by userID, newest
// occurrence date first. Records sharing a date come back most recently
// inserted first. The result is never nil.
func (db *DB) ListTransactionsByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? ORDER BY occurred_on DESC, rowid DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}

	return transactions, rows.Err()
}

// UpdateTransaction replaces the mutable fields of the stored record with the
// values in t. Only a record owned by t.UserID is touched.
func (db *DB) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}
	t.UpdatedAt = db.timestamp()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE transactions
		SET type = ?, amount = ?, category = ?, occurred_on = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		string(t.Kind), t.Amount.String(), t.Category, t.Date, t.Description, t.UpdatedAt, t.ID, t.UserID,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// DeleteTransaction removes the transaction id owned by userID.
func (db *DB) DeleteTransaction(ctx context.Context, id, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
