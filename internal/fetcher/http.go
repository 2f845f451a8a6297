package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration // per-attempt timeout
	Retries      int           // additional attempts after the first
	RetryDelay   time.Duration // base backoff; doubled per attempt
	RateLimiters map[string]*rate.Limiter
}

// HTTPFetcher performs rate-limited HTTP requests with bounded retry.
// Every upstream this service talks to (Census, FCC, Overpass, NHTSA)
// is rate-limited, so requests wait on a per-host limiter before each
// attempt; retries against one upstream are always sequential.
type HTTPFetcher struct {
	client   *http.Client
	opts     Options
	limiters map[string]*rate.Limiter
	fallback *rate.Limiter
}

// DefaultRateLimiters returns the default per-host rate limiters.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"api.census.gov":             rate.NewLimiter(10, 10),
		"geo.fcc.gov":                rate.NewLimiter(10, 10),
		"overpass-api.de":            rate.NewLimiter(2, 2),
		"overpass.kumi.systems":      rate.NewLimiter(2, 2),
		"crashviewer.nhtsa.dot.gov":  rate.NewLimiter(5, 5),
		"lehd.ces.census.gov":        rate.NewLimiter(5, 5),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 12 * time.Second
	}
	// Retries follows the Request field convention: 0 means default,
	// negative disables retrying.
	if opts.Retries == 0 {
		opts.Retries = 1
	} else if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 250 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "corridor-cli/1.0"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		// No client-level timeout: each attempt carries its own
		// context deadline so callers can override per request.
		client:   &http.Client{Transport: transport},
		opts:     opts,
		limiters: limiters,
		fallback: rate.NewLimiter(20, 20),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return f.fallback
	}
	if lim, ok := f.limiters[u.Hostname()]; ok {
		return lim
	}
	return f.fallback
}

// attempt performs a single HTTP attempt and classifies the outcome.
type attemptOutcome int

const (
	outcomeOK attemptOutcome = iota
	outcomeRetryable
	outcomeFatal
)

func (f *HTTPFetcher) attempt(ctx context.Context, req Request, timeout time.Duration) ([]byte, attemptOutcome) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		// A malformed request never succeeds on retry.
		return nil, outcomeFatal
	}
	httpReq.Header.Set("User-Agent", f.opts.UserAgent)
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		// Network failure or attempt timeout. If the parent context is
		// done the caller is shutting down and retrying is pointless.
		if ctx.Err() != nil {
			return nil, outcomeFatal
		}
		return nil, outcomeRetryable
	}
	defer resp.Body.Close() //nolint:errcheck

	accept := req.Accept
	if accept == nil {
		accept = func(status int) bool { return status >= 200 && status < 300 }
	}

	if !accept(resp.StatusCode) {
		retriable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		if !retriable {
			return nil, outcomeFatal
		}
		return nil, outcomeRetryable
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, outcomeRetryable
	}
	if req.Validate != nil && !req.Validate(payload) {
		return nil, outcomeRetryable
	}
	return payload, outcomeOK
}

// backoff sleeps for delay * 2^attempt, honoring ctx cancellation.
func (f *HTTPFetcher) backoff(ctx context.Context, base time.Duration, attempt int) {
	d := base << attempt
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// do runs the attempt/backoff loop and returns the raw payload, or
// (nil, false) once all attempts are exhausted or a fatal outcome is
// hit. Callers treat false as "source unavailable", never as a fatal
// pipeline error.
func (f *HTTPFetcher) do(ctx context.Context, req Request) ([]byte, bool) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = f.opts.Timeout
	}
	retries := req.Retries
	if retries == 0 {
		retries = f.opts.Retries
	}
	if retries < 0 {
		retries = 0
	}
	delay := req.RetryDelay
	if delay == 0 {
		delay = f.opts.RetryDelay
	}

	lim := f.limiterFor(req.URL)

	for attempt := 0; attempt <= retries; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return nil, false
		}

		payload, outcome := f.attempt(ctx, req, timeout)
		switch outcome {
		case outcomeOK:
			return payload, true
		case outcomeFatal:
			return nil, false
		case outcomeRetryable:
			if attempt == retries {
				return nil, false
			}
			zap.L().Debug("http attempt failed, backing off",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, delay, attempt)
		}
	}

	return nil, false
}
