// Package client talks to the finance tracker server the way the browser
// app does: cookie authenticated JSON over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"finance-tracker/internal/fx"
	"finance-tracker/internal/models"
)

// ErrUnauthenticated is returned when the server has no session for the
// client.
var ErrUnauthenticated = errors.New("not authenticated")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Details []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// TransactionInput carries the fields of a create or update request. Nil
// fields are left out of the request body.
type TransactionInput struct {
	UserID      *string `json:"userId,omitempty"`
	Type        *string `json:"type,omitempty"`
	Amount      *string `json:"amount,omitempty"`
	Category    *string `json:"category,omitempty"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
}

// String returns a pointer to s, for building a TransactionInput.
func String(s string) *string {
	return &s
}

// Client is an HTTP client for the finance tracker API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a Client for the server at baseURL with an empty cookie jar.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		baseURL: u,
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			// Login redirects are for browsers; surface them instead of following.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// SetSession seeds the cookie jar with an existing session cookie, as copied
// from a logged in browser.
func (c *Client) SetSession(name, value string) {
	c.http.Jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  name,
		Value: value,
		Path:  "/",
	}})
}

// Me returns the identity of the current session. It returns
// ErrUnauthenticated when there is none.
func (c *Client) Me(ctx context.Context) (*models.Identity, error) {
	var body struct {
		User *models.Identity `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &body); err != nil {
		return nil, err
	}
	if body.User == nil {
		return nil, ErrUnauthenticated
	}
	return body.User, nil
}

// Logout ends the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ListTransactions returns every transaction of userID, newest first.
func (c *Client) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	list := []models.Transaction{}
	if err := c.do(ctx, http.MethodGet, "/api/transactions/"+url.PathEscape(userID), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateTransaction creates a transaction and returns the stored record.
func (c *Client) CreateTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	var t models.Transaction
	if err := c.do(ctx, http.MethodPost, "/api/transactions", in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransaction changes the given fields of transaction id.
func (c *Client) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (*models.Transaction, error) {
	var t models.Transaction
	if err := c.do(ctx, http.MethodPut, "/api/transactions/"+url.PathEscape(id), in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTransaction removes transaction id.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/transactions/"+url.PathEscape(id), nil, nil)
}

// ExchangeRate returns the latest rate from base to quote.
func (c *Client) ExchangeRate(ctx context.Context, base, quote string) (*fx.Rate, error) {
	q := url.Values{"from": {base}, "to": {quote}}
	var rate fx.Rate
	if err := c.do(ctx, http.MethodGet, "/api/fx?"+q.Encode(), nil, &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError reads an RFC 9457 problem body as written by huma, falling back
// to the status line for anything else.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Message  string `json:"message"`
			Location string `json:"location"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&problem); err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	apiErr.Message = problem.Detail
	if apiErr.Message == "" {
		apiErr.Message = problem.Title
	}
	for _, e := range problem.Errors {
		detail := e.Message
		if e.Location != "" {
			detail = strings.TrimPrefix(e.Location, "body.") + " " + e.Message
		}
		apiErr.Details = append(apiErr.Details, detail)
	}
	return apiErr
}
