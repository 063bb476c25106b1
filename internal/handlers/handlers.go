package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"finance-tracker/internal/logging"
	"finance-tracker/internal/models"
	"finance-tracker/internal/session"
)

// Provider is the external identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.Identity, error)
}

// UserStore records users on login.
type UserStore interface {
	UpsertUser(ctx context.Context, identity models.Identity) (*models.User, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds dependencies for the auth and health HTTP handlers.
type Handlers struct {
	sessions   *session.Manager
	provider   Provider
	users      UserStore
	db         Pinger
	appOrigin  string
	failureURL string
}

// NewHandlers creates a new Handlers instance. Successful logins are
// redirected to appOrigin and failed ones to failureURL; neither is ever
// taken from the request.
func NewHandlers(sessions *session.Manager, provider Provider, users UserStore, db Pinger, appOrigin, failureURL string) *Handlers {
	return &Handlers{
		sessions:   sessions,
		provider:   provider,
		users:      users,
		db:         db,
		appOrigin:  appOrigin,
		failureURL: failureURL,
	}
}

// Routes registers the auth and health endpoints on mux.
func (h *Handlers) Routes(mux *http.ServeMux, log *logrus.Logger) {
	mux.HandleFunc("GET /auth/google", logging.LoggingWrapper("BeginLogin", log, h.BeginLogin))
	mux.HandleFunc("GET /auth/google/callback", logging.LoggingWrapper("CompleteLogin", log, h.CompleteLogin))
	mux.HandleFunc("GET /auth/me", logging.LoggingWrapper("Me", log, h.Me))
	mux.HandleFunc("GET /auth/logout", logging.LoggingWrapper("Logout", log, h.Logout))
	mux.HandleFunc("POST /auth/logout", logging.LoggingWrapper("Logout", log, h.Logout))
	mux.HandleFunc("GET /health", logging.LoggingWrapper("Health", log, h.Health))
}

// BeginLogin redirects the browser to the provider's consent screen.
func (h *Handlers) BeginLogin(w http.ResponseWriter, r *http.Request, logData *logging.LogData) error {
	state, err := h.sessions.IssueState(w)
	if err != nil {
		http.Redirect(w, r, h.failureURL, http.StatusFound)
		return fmt.Errorf("issue oauth state: %w", err)
	}
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
	return nil
}

// CompleteLogin is the provider's redirect target. On success the user is
// stored, a session is established and the browser is sent to the app.
// Every failure redirects to the failure URL without touching the session.
func (h *Handlers) CompleteLogin(w http.ResponseWriter, r *http.Request, logData *logging.LogData) error {
	ctx := r.Context()
	q := r.URL.Query()

	fail := func(err error) error {
		http.Redirect(w, r, h.failureURL, http.StatusFound)
		return err
	}

	if providerErr := q.Get("error"); providerErr != "" {
		// Only clears the state cookie; the login fails either way.
		_ = h.sessions.VerifyState(w, r, q.Get("state"))
		return fail(fmt.Errorf("provider denied login: %s", providerErr))
	}
	if err := h.sessions.VerifyState(w, r, q.Get("state")); err != nil {
		return fail(err)
	}

	stopTimer := logData.AddTiming("exchangeMs")
	identity, err := h.provider.Exchange(ctx, q.Get("code"))
	stopTimer()
	if err != nil {
		return fail(err)
	}
	logData.AddData("userId", identity.ID)

	user, err := h.users.UpsertUser(ctx, *identity)
	if err != nil {
		return fail(fmt.Errorf("upsert user: %w", err))
	}

	if _, err := h.sessions.Establish(ctx, w, r, user); err != nil {
		return fail(err)
	}

	http.Redirect(w, r, h.appOrigin, http.StatusFound)
	return nil
}

// MeResponse is the body of the who-am-I endpoint.
type MeResponse struct {
	User  *models.Identity `json:"user"`
	Error string           `json:"error,omitempty"`
}

// Me reports the identity of the current session. Anonymous callers get 401
// with a null user; that is a normal answer, not a failure.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request, logData *logging.LogData) error {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Vary", "Cookie")

	sess := session.FromContext(r.Context())
	if sess == nil {
		return writeJSON(w, http.StatusUnauthorized, MeResponse{Error: "not authenticated"})
	}

	identity := sess.Identity
	logData.AddData("userId", identity.ID)
	return writeJSON(w, http.StatusOK, MeResponse{User: &identity})
}

// Logout destroys the session and always acknowledges.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request, logData *logging.LogData) error {
	destroyErr := h.sessions.Destroy(r.Context(), w, r)
	if err := writeJSON(w, http.StatusOK, map[string]bool{"success": true}); err != nil {
		return err
	}
	if destroyErr != nil {
		return fmt.Errorf("destroy session: %w", destroyErr)
	}
	return nil
}

// Health reports whether the database is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request, logData *logging.LogData) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		_ = writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return fmt.Errorf("health: %w", err)
	}
	return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
