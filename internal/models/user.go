package models

import "time"

// Identity is the normalized view of a logged-in person as returned to clients.
// ID is the identity provider's stable subject id; transactions reference it.
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// User represents a stored user account.
type User struct {
	ID         string    `json:"-"`
	ProviderID string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatarUrl"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Identity returns the client-facing identity of u.
func (u *User) Identity() Identity {
	return Identity{
		ID:        u.ProviderID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}

// Session represents a server-side login session.
type Session struct {
	Token        string    `json:"token"`
	UserID       string    `json:"user_id"`
	Identity     Identity  `json:"identity"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
