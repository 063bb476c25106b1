// Package session issues and validates server-side login sessions delivered
// by cookie.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"

	"finance-tracker/internal/models"
)

const (
	// DefaultCookieName is used when Options.CookieName is empty.
	DefaultCookieName = "fintrack.sid"
	// DefaultTTL is how long a session lives without activity.
	DefaultTTL = 24 * time.Hour
)

// Store persists sessions. storage.DB and RedisStore implement it.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	RenewSession(ctx context.Context, token string, now, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
}

// Options configures a Manager.
type Options struct {
	CookieName string
	// Secret is the root key material for cookie signing and encryption.
	Secret   string
	TTL      time.Duration
	Secure   bool
	SameSite http.SameSite
	Now      func() time.Time
}

// Manager establishes, resolves and destroys sessions.
//
// Sessions slide: a request that arrives when less than half of the lifetime
// remains pushes the expiry out to a full TTL again and re-issues the cookie.
type Manager struct {
	store  Store
	opts   Options
	codec  *securecookie.SecureCookie
	states *securecookie.SecureCookie
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, opts Options) (*Manager, error) {
	if len(opts.Secret) < 16 {
		return nil, errors.New("session secret must be at least 16 characters")
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	hashKey, blockKey, err := deriveKeys(opts.Secret, "session")
	if err != nil {
		return nil, err
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(opts.TTL.Seconds()))

	stateHash, stateBlock, err := deriveKeys(opts.Secret, "oauth-state")
	if err != nil {
		return nil, err
	}
	states := securecookie.New(stateHash, stateBlock)
	states.MaxAge(int(stateTTL.Seconds()))

	return &Manager{store: store, opts: opts, codec: codec, states: states}, nil
}

// deriveKeys expands the secret into a 32 byte HMAC key and a 32 byte AES key.
func deriveKeys(secret, purpose string) (hashKey, blockKey []byte, err error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("fintrack "+purpose))
	hashKey = make([]byte, 32)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		return nil, nil, fmt.Errorf("derive hash key: %w", err)
	}
	if _, err := io.ReadFull(r, blockKey); err != nil {
		return nil, nil, fmt.Errorf("derive block key: %w", err)
	}
	return hashKey, blockKey, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.opts.TTL
}

// GenerateToken returns a random, URL-safe session token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Middleware resolves the session of every request once and makes it
// available through FromContext. Requests without a live session pass
// through unchanged; they are anonymous, not failures.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := m.resolve(w, r); sess != nil {
			r = r.WithContext(NewContext(r.Context(), sess))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) resolve(w http.ResponseWriter, r *http.Request) *models.Session {
	token, ok := m.tokenFromRequest(r)
	if !ok {
		if _, err := r.Cookie(m.opts.CookieName); err == nil {
			m.clearCookie(w)
		}
		return nil
	}

	ctx := r.Context()
	sess, err := m.store.GetSession(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		m.clearCookie(w)
		return nil
	}
	if err != nil {
		logrus.WithError(err).Warn("session lookup failed")
		return nil
	}

	now := m.opts.Now()
	if sess.Expired(now) {
		if err := m.store.DeleteSession(ctx, token); err != nil {
			logrus.WithError(err).Warn("failed to delete expired session")
		}
		m.clearCookie(w)
		return nil
	}

	if sess.ExpiresAt.Sub(now) < m.opts.TTL/2 {
		expiresAt := now.Add(m.opts.TTL)
		if err := m.store.RenewSession(ctx, token, now, expiresAt); err != nil {
			// Keep serving the current session; renewal is retried next request.
			logrus.WithError(err).Warn("failed to renew session")
		} else {
			sess.ExpiresAt = expiresAt
			sess.LastActivity = now
			if err := m.setCookie(w, token, expiresAt); err != nil {
				logrus.WithError(err).Warn("failed to reissue session cookie")
			}
		}
	}

	return sess
}

func (m *Manager) tokenFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	var token string
	if err := m.codec.Decode(m.opts.CookieName, cookie.Value, &token); err != nil || token == "" {
		return "", false
	}
	return token, true
}

// Establish starts a new session for user and sets the session cookie. Any
// session the request already carries is destroyed first so a login always
// yields a fresh token.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, user *models.User) (*models.Session, error) {
	if old, ok := m.tokenFromRequest(r); ok {
		if err := m.store.DeleteSession(ctx, old); err != nil {
			logrus.WithError(err).Warn("failed to delete previous session")
		}
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := m.opts.Now()
	sess := &models.Session{
		Token:        token,
		UserID:       user.ID,
		Identity:     user.Identity(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.opts.TTL),
		LastActivity: now,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := m.setCookie(w, token, sess.ExpiresAt); err != nil {
		return nil, err
	}
	return sess, nil
}

// Destroy deletes the request's session, if any, and clears the cookie.
// It is safe to call for anonymous requests.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if token, ok := m.tokenFromRequest(r); ok {
		err = m.store.DeleteSession(ctx, token)
	}
	m.clearCookie(w)
	return err
}

func (m *Manager) setCookie(w http.ResponseWriter, token string, expiresAt time.Time) error {
	encoded, err := m.codec.Encode(m.opts.CookieName, token)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(m.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	})
	return nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	})
}
