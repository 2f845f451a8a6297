package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(Options{
		Timeout:    2 * time.Second,
		Retries:    2,
		RetryDelay: time.Millisecond,
	})
}

type payload struct {
	Value string `json:"value"`
}

func TestFetchJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": "ok"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, ok := FetchJSON[payload](context.Background(), newTestFetcher(), nil, Request{URL: srv.URL})
	require.True(t, ok)
	assert.Equal(t, "ok", out.Value)
}

func TestFetchJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"value": "recovered"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, ok := FetchJSON[payload](context.Background(), newTestFetcher(), nil, Request{URL: srv.URL})
	require.True(t, ok)
	assert.Equal(t, "recovered", out.Value)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchJSON_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, ok := FetchJSON[payload](context.Background(), newTestFetcher(), nil, Request{URL: srv.URL})
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchJSON_RetriesInvalidJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.Write([]byte(`<html>rate limited</html>`)) //nolint:errcheck
			return
		}
		w.Write([]byte(`{"value": "clean"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, ok := FetchJSON[payload](context.Background(), newTestFetcher(), nil, Request{URL: srv.URL})
	require.True(t, ok)
	assert.Equal(t, "clean", out.Value)
}

func TestFetchJSON_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, ok := FetchJSON[payload](context.Background(), newTestFetcher(), nil, Request{URL: srv.URL})
	assert.False(t, ok)
	assert.Equal(t, int32(3), calls.Load()) // first attempt + 2 retries
}

func TestFetchJSON_RetriesDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, ok := FetchJSON[payload](context.Background(), newTestFetcher(), nil, Request{URL: srv.URL, Retries: -1})
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchJSON_RetriesDisabledFetcherWide(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{
		Timeout:    2 * time.Second,
		Retries:    -1,
		RetryDelay: time.Millisecond,
	})

	_, ok := FetchJSON[payload](context.Background(), f, nil, Request{URL: srv.URL})
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchJSON_ServesFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"value": "cached"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	cache := NewCache()
	req := Request{URL: srv.URL, CacheTTL: time.Minute, CacheKey: "test:key"}

	out, ok := FetchJSON[payload](context.Background(), newTestFetcher(), cache, req)
	require.True(t, ok)
	assert.Equal(t, "cached", out.Value)

	out, ok = FetchJSON[payload](context.Background(), newTestFetcher(), cache, req)
	require.True(t, ok)
	assert.Equal(t, "cached", out.Value)

	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchJSON_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "data=query", string(body))
		w.Write([]byte(`{"value": "posted"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, ok := FetchJSON[payload](context.Background(), newTestFetcher(), nil, Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   "data=query",
	})
	require.True(t, ok)
	assert.Equal(t, "posted", out.Value)
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("k", []byte("v"), time.Minute)

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len()) // expired entry pruned on read
}

func TestCache_NonPositiveTTLIgnored(t *testing.T) {
	cache := NewCache()
	cache.Set("k", []byte("v"), 0)
	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestRequest_Key(t *testing.T) {
	assert.Equal(t, "custom", Request{URL: "http://x", CacheKey: "custom"}.Key())
	assert.Equal(t, "GET:http://x:", Request{URL: "http://x"}.Key())
	assert.Equal(t, "POST:http://x:b", Request{Method: "POST", URL: "http://x", Body: "b"}.Key())
}
