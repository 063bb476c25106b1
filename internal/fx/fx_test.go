package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "INR", r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

const inrResponse = `{"amount":1.0,"base":"USD","date":"2024-03-01","rates":{"INR":82.91}}`

func TestLatest(t *testing.T) {
	server, calls := newRateServer(t, http.StatusOK, inrResponse)
	client := NewClient(server.URL+"/", nil, time.Hour)

	rate, err := client.Latest(context.Background(), "usd", " inr ")
	require.NoError(t, err)

	assert.Equal(t, "USD", rate.Base)
	assert.Equal(t, "INR", rate.Quote)
	assert.True(t, decimal.RequireFromString("82.91").Equal(rate.Rate))
	assert.Equal(t, "2024-03-01", rate.Date)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLatestSameCurrency(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", nil, time.Hour)
	rate, err := client.Latest(context.Background(), "EUR", "eur")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1).Equal(rate.Rate))
}

func TestLatestInvalidCurrency(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", nil, time.Hour)
	_, err := client.Latest(context.Background(), "dollars", "INR")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestLatestUpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"bad json", http.StatusOK, `{"rates":`},
		{"missing quote", http.StatusOK, `{"base":"USD","date":"2024-03-01","rates":{"EUR":0.9}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newRateServer(t, tt.status, tt.body)
			_, err := NewClient(server.URL, nil, time.Hour).Latest(context.Background(), "USD", "INR")
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestLatestUsesMemoryCache(t *testing.T) {
	server, calls := newRateServer(t, http.StatusOK, inrResponse)
	cache := NewMemoryCache()
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	client := NewClient(server.URL, cache, time.Hour)

	for i := 0; i < 3; i++ {
		_, err := client.Latest(context.Background(), "USD", "INR")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Hour)
	_, err := client.Latest(context.Background(), "USD", "INR")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "expired entry should be refetched")
}

func TestLatestUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	server, calls := newRateServer(t, http.StatusOK, inrResponse)
	client := NewClient(server.URL, NewRedisCache(rdb), 30*time.Minute)

	first, err := client.Latest(context.Background(), "USD", "INR")
	require.NoError(t, err)
	second, err := client.Latest(context.Background(), "USD", "INR")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, first.Rate.Equal(second.Rate))
	assert.Equal(t, 30*time.Minute, mr.TTL("fintrack:fx:USD:INR"))

	mr.FastForward(31 * time.Minute)
	_, err = client.Latest(context.Background(), "USD", "INR")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
