package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type Config struct {
	Port         string
	DatabaseURL  string
	LogLevel     string
	PublicURL    string
	AppOrigin    string
	LoginFailURL string
	CORSOrigins  []string

	SessionSecret        string
	SessionCookieName    string
	SessionTTL           time.Duration
	SessionPruneInterval time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	GoogleAuthURL      string
	GoogleTokenURL     string
	GoogleUserInfoURL  string

	RedisAddr     string
	RedisPassword string

	FXBaseURL  string
	FXCacheTTL time.Duration
}

func ProcessEnvironmentVariables() (*Config, error) {
	// Defaults suit local development with the web client on the Vite dev server.
	env := Config{
		Port:                 "8080",
		DatabaseURL:          "finance.db",
		LogLevel:             "info",
		PublicURL:            "http://localhost:8080",
		AppOrigin:            "http://localhost:5173",
		SessionCookieName:    "fintrack.sid",
		SessionTTL:           24 * time.Hour,
		SessionPruneInterval: time.Hour,
		FXBaseURL:            "https://api.frankfurter.app",
		FXCacheTTL:           time.Hour,
	}

	setString(&env.Port, "PORT")
	setString(&env.DatabaseURL, "DATABASE_URL")
	setString(&env.LogLevel, "LOG_LEVEL")
	setString(&env.PublicURL, "PUBLIC_URL")
	setString(&env.AppOrigin, "APP_ORIGIN")
	setString(&env.SessionSecret, "SESSION_SECRET")
	setString(&env.SessionCookieName, "SESSION_COOKIE_NAME")
	setString(&env.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&env.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&env.GoogleAuthURL, "GOOGLE_AUTH_URL")
	setString(&env.GoogleTokenURL, "GOOGLE_TOKEN_URL")
	setString(&env.GoogleUserInfoURL, "GOOGLE_USERINFO_URL")
	setString(&env.RedisAddr, "REDIS_ADDR")
	setString(&env.RedisPassword, "REDIS_PASSWORD")
	setString(&env.FXBaseURL, "FX_BASE_URL")

	env.PublicURL = strings.TrimRight(env.PublicURL, "/")
	env.AppOrigin = strings.TrimRight(env.AppOrigin, "/")

	env.LoginFailURL = env.AppOrigin + "/login?error=auth_failed"
	setString(&env.LoginFailURL, "LOGIN_FAILURE_URL")

	env.GoogleCallbackURL = env.PublicURL + "/auth/google/callback"
	setString(&env.GoogleCallbackURL, "GOOGLE_CALLBACK_URL")

	env.CORSOrigins = []string{env.AppOrigin}
	if v := os.Getenv("CORS_ORIGINS"); len(v) != 0 {
		env.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
				env.CORSOrigins = append(env.CORSOrigins, origin)
			}
		}
	}

	var errs []error
	for _, d := range []struct {
		target *time.Duration
		name   string
	}{
		{&env.SessionTTL, "SESSION_TTL"},
		{&env.SessionPruneInterval, "SESSION_PRUNE_INTERVAL"},
		{&env.FXCacheTTL, "FX_CACHE_TTL"},
	} {
		if err := setDuration(d.target, d.name); err != nil {
			errs = append(errs, err)
		}
	}

	if len(env.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be set to at least 16 characters"))
	}
	for name, raw := range map[string]string{"PUBLIC_URL": env.PublicURL, "APP_ORIGIN": env.AppOrigin} {
		if _, err := parseOrigin(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &env, nil
}

// SecureCookies reports whether cookies must carry the Secure attribute,
// which is the case whenever the server is reached over https.
func (c *Config) SecureCookies() bool {
	u, err := url.Parse(c.PublicURL)
	return err == nil && u.Scheme == "https"
}

// SameSite returns None when the web client is served from a different
// origin than the API, so the browser still sends the session cookie on
// cross-origin requests. Otherwise it returns Lax.
func (c *Config) SameSite() http.SameSite {
	public, err1 := parseOrigin(c.PublicURL)
	app, err2 := parseOrigin(c.AppOrigin)
	if err1 != nil || err2 != nil || public == app {
		return http.SameSiteLaxMode
	}
	return http.SameSiteNoneMode
}

// RedisEnabled reports whether a Redis server was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func parseOrigin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q has no host", raw)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

func setString(target *string, name string) {
	if v := os.Getenv(name); len(v) != 0 {
		*target = v
	}
}

func setDuration(target *time.Duration, name string) error {
	v := os.Getenv(name)
	if len(v) == 0 {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	*target = d
	return nil
}
