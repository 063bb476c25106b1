package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"finance-tracker/internal/models"
)

const userColumns = "id, provider_id, email, name, avatar_url, created_at, updated_at"

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.ProviderID, &u.Email, &u.Name, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser stores the identity returned by a successful login. A user is
// matched by provider id; on a match email, name and avatar are re-synced and
// the internal id and creation time are kept.
func (db *DB) UpsertUser(ctx context.Context, identity models.Identity) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, &models.ValidationError{Fields: []models.FieldError{{Field: "email", Message: "is required"}}}
	}
	if identity.ID == "" {
		return nil, &models.ValidationError{Fields: []models.FieldError{{Field: "id", Message: "is required"}}}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}
	now := db.timestamp()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
		id.String(), identity.ID, email, identity.Name, identity.AvatarURL, now, now,
	)
	if err != nil {
		return nil, err
	}

	return db.GetUserByProviderID(ctx, identity.ID)
}

// GetUserByProviderID retrieves a user by the identity provider's id.
func (db *DB) GetUserByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE provider_id = ?", providerID)
	return userOrNotFound(scanUser(row))
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return userOrNotFound(scanUser(row))
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	)
	return userOrNotFound(scanUser(row))
}

// ListUsers returns every user ordered by email.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY email")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func userOrNotFound(u *models.User, err error) (*models.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return u, err
}
