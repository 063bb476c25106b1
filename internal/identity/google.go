// Package identity exchanges OAuth authorization codes with Google and
// normalizes the returned profile.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"finance-tracker/internal/models"
)

// DefaultUserInfoURL is Google's OAuth2 userinfo endpoint.
const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Scopes requested on every login.
var Scopes = []string{"openid", "profile", "email"}

// ProviderError reports a failed exchange with the identity provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Config holds the OAuth client settings. Empty endpoint fields fall back to
// Google's production endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Timeout      time.Duration
}

// Google is the identity adapter for Google accounts.
type Google struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewGoogle creates a Google adapter from cfg.
func NewGoogle(cfg Config) *Google {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = DefaultUserInfoURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		client:      &http.Client{Timeout: timeout},
	}
}

// AuthCodeURL returns the provider URL the browser is sent to.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// userInfo covers both the v2 userinfo document ("id") and the OpenID
// Connect one ("sub").
type userInfo struct {
	ID      string `json:"id"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`

	VerifiedEmail bool `json:"verified_email"`
	EmailVerified bool `json:"email_verified"`
}

// Exchange trades an authorization code for the caller's normalized identity.
// Any failure is returned as a *ProviderError.
func (g *Google) Exchange(ctx context.Context, code string) (*models.Identity, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &ProviderError{Op: "exchange", Err: fmt.Errorf("missing authorization code")}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, &ProviderError{Op: "exchange", Err: err}
	}

	info, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, &ProviderError{Op: "userinfo", Err: err}
	}

	identity, err := normalize(info)
	if err != nil {
		return nil, &ProviderError{Op: "profile", Err: err}
	}
	return identity, nil
}

func (g *Google) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}

func normalize(info *userInfo) (*models.Identity, error) {
	id := strings.TrimSpace(info.ID)
	if id == "" {
		id = strings.TrimSpace(info.Sub)
	}
	if id == "" {
		return nil, fmt.Errorf("profile has no id")
	}

	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		return nil, fmt.Errorf("profile has no email")
	}
	// Only addresses Google has verified are stored as a user's email.
	if !info.VerifiedEmail && !info.EmailVerified {
		return nil, fmt.Errorf("email %s is not verified", email)
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = email
	}

	return &models.Identity{
		ID:        id,
		Name:      name,
		Email:     email,
		AvatarURL: strings.TrimSpace(info.Picture),
	}, nil
}
