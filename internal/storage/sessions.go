package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"finance-tracker/internal/models"
)

// Session times are stored as unix milliseconds so that expiry comparisons
// in SQL are plain integer comparisons.

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, created_at, expires_at, last_activity) VALUES (?, ?, ?, ?, ?)",
		s.Token, s.UserID, s.CreatedAt.UnixMilli(), s.ExpiresAt.UnixMilli(), s.LastActivity.UnixMilli(),
	)
	return err
}

// GetSession returns the session for token together with the current profile
// of its user. Expired sessions are returned as well; callers decide what an
// expired session means.
func (db *DB) GetSession(ctx context.Context, token string) (*models.Session, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT s.token, s.user_id, s.created_at, s.expires_at, s.last_activity,
			u.provider_id, u.name, u.email, u.avatar_url
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ?
	`, token)

	var s models.Session
	var createdAt, expiresAt, lastActivity int64
	err := row.Scan(&s.Token, &s.UserID, &createdAt, &expiresAt, &lastActivity,
		&s.Identity.ID, &s.Identity.Name, &s.Identity.Email, &s.Identity.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	s.LastActivity = time.UnixMilli(lastActivity).UTC()
	return &s, nil
}

// RenewSession records activity at now and moves expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, now, expiresAt time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		now.UnixMilli(), expiresAt.UnixMilli(), token,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// DeleteSession removes a session by token. Deleting an unknown token is not an error.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteUserSessions removes every session of the user with internal id userID.
func (db *DB) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CleanExpiredSessions removes all sessions that expired before now.
func (db *DB) CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
