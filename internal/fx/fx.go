// Package fx fetches display-only currency exchange rates from the
// Frankfurter API and caches them.
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidCurrency is returned for codes that are not three letters.
	ErrInvalidCurrency = errors.New("currency must be a three letter ISO 4217 code")
	// ErrUnavailable is returned when the rate source cannot answer.
	ErrUnavailable = errors.New("exchange rate unavailable")
	// ErrCacheMiss is returned by caches for unknown or expired keys.
	ErrCacheMiss = errors.New("cache miss")
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Rate is the price of one unit of Base in Quote.
type Rate struct {
	Base  string          `json:"base"`
	Quote string          `json:"quote"`
	Rate  decimal.Decimal `json:"rate"`
	Date  string          `json:"date"`
}

// Cache stores rates for a limited time.
type Cache interface {
	Get(ctx context.Context, key string) (*Rate, error)
	Set(ctx context.Context, key string, rate *Rate, ttl time.Duration) error
}

// Client reads rates from a Frankfurter compatible server.
type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	ttl     time.Duration
}

// NewClient creates a Client. cache may be nil to disable caching.
func NewClient(baseURL string, cache Cache, ttl time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		cache:   cache,
		ttl:     ttl,
	}
}

// NormalizeCurrency upper-cases code and checks its shape.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(code) {
		return "", ErrInvalidCurrency
	}
	return code, nil
}

// Latest returns the most recent rate from base to quote.
func (c *Client) Latest(ctx context.Context, base, quote string) (*Rate, error) {
	base, err := NormalizeCurrency(base)
	if err != nil {
		return nil, err
	}
	quote, err = NormalizeCurrency(quote)
	if err != nil {
		return nil, err
	}
	if base == quote {
		return &Rate{Base: base, Quote: quote, Rate: decimal.NewFromInt(1), Date: time.Now().UTC().Format("2006-01-02")}, nil
	}

	key := base + ":" + quote
	if c.cache != nil {
		rate, err := c.cache.Get(ctx, key)
		if err == nil {
			return rate, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			logrus.WithError(err).Warn("fx cache read failed")
		}
	}

	rate, err := c.fetch(ctx, base, quote)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, rate, c.ttl); err != nil {
			logrus.WithError(err).Warn("fx cache write failed")
		}
	}
	return rate, nil
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (c *Client) fetch(ctx context.Context, base, quote string) (*Rate, error) {
	q := url.Values{"from": {base}, "to": {quote}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	value, ok := body.Rates[quote]
	if !ok {
		return nil, fmt.Errorf("%w: no %s rate in response", ErrUnavailable, quote)
	}

	return &Rate{Base: base, Quote: quote, Rate: value, Date: body.Date}, nil
}
