package papersources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientSetsHeaders(t *testing.T) {
	var gotUserAgent, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotAPIKey = r.Header.Get("x-api-key")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{
		RateLimit:    100,
		BurstSize:    10,
		APIKey:       "secret",
		APIKeyHeader: "x-api-key",
	})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "litsynth/1.0", gotUserAgent)
	assert.Equal(t, "secret", gotAPIKey)
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClientHonorsRetryAfterSeconds(t *testing.T) {
	var calls atomic.Int32
	var firstRetryGap time.Duration
	var firstCallAt time.Time

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			firstCallAt = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			firstRetryGap = time.Since(firstCallAt)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.GreaterOrEqual(t, firstRetryGap, time.Second)
}

func TestHTTPClientExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exhausted")
}

func TestHTTPClientRespectsContextDuringRetryWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 5,
		RetryDelay: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow(), "bucket of one should be empty after one request")
}
