package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Request describes one upstream JSON call.
type Request struct {
	Method string // default GET
	URL    string
	Body   string
	Header http.Header

	// Timeout and Retries override the fetcher defaults when non-zero.
	// Retries counts additional attempts after the first; -1 disables
	// retrying entirely.
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	// CacheTTL > 0 memoizes the successful payload under CacheKey (or a
	// normalized method:url:body signature when empty).
	CacheTTL time.Duration
	CacheKey string

	// Accept overrides the default 2xx success predicate.
	Accept func(status int) bool

	// Validate, when set, must accept the payload for the attempt to
	// count as a success; a rejected payload is retried like a 5xx.
	Validate func(payload []byte) bool
}

// Key returns the cache key for the request.
func (r Request) Key() string {
	if r.CacheKey != "" {
		return r.CacheKey
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + ":" + r.URL + ":" + r.Body
}

// FetchJSON performs the request with retry/backoff and decodes the
// payload into T. It returns (nil, false) when the upstream is
// unavailable after all attempts, the explicit "no result" signal.
// Callers must degrade to their estimate path on false, never fail the
// whole analysis.
//
// With cache non-nil and CacheTTL > 0, a fresh cached payload is
// decoded and returned without a network call.
func FetchJSON[T any](ctx context.Context, f *HTTPFetcher, cache *Cache, req Request) (*T, bool) {
	key := req.Key()

	if cache != nil && req.CacheTTL > 0 {
		if payload, ok := cache.Get(key); ok {
			var out T
			if err := json.Unmarshal(payload, &out); err == nil {
				return &out, true
			}
			// Undecodable cached payload: fall through to refetch.
		}
	}

	if req.Validate == nil {
		req.Validate = json.Valid
	}

	payload, ok := f.do(ctx, req)
	if !ok {
		return nil, false
	}

	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		// Validate guarantees syntactically valid JSON, but the shape
		// can still disagree with T.
		zap.L().Warn("json payload did not match expected shape",
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return nil, false
	}

	if cache != nil && req.CacheTTL > 0 {
		cache.Set(key, payload, req.CacheTTL)
	}

	return &out, true
}
