package session

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"
)

const (
	stateCookieName = "fintrack.oauth_state"
	stateTTL        = 10 * time.Minute
)

// ErrStateMismatch is returned when the OAuth callback state does not match
// the one issued at login start.
var ErrStateMismatch = errors.New("oauth state mismatch")

// IssueState creates a random OAuth state value and stores it in a short-lived
// signed cookie. The cookie is always SameSite=Lax because it has to survive
// the top-level redirect back from the provider.
func (m *Manager) IssueState(w http.ResponseWriter) (string, error) {
	state, err := GenerateToken()
	if err != nil {
		return "", err
	}
	encoded, err := m.states.Encode(stateCookieName, state)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// VerifyState checks got against the state cookie and clears the cookie.
func (m *Manager) VerifyState(w http.ResponseWriter, r *http.Request, got string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || got == "" {
		return ErrStateMismatch
	}
	var want string
	if err := m.states.Decode(stateCookieName, cookie.Value, &want); err != nil {
		return ErrStateMismatch
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
