// Package fetcher downloads data from the World Bank API and Wikipedia with
// per-host rate limiting and transient-error retry.
package fetcher

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/atlasdata/econpipe/internal/resilience"
)

// Options configures the shared HTTP client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig

	// RateLimits maps hostnames to requests-per-second limits. Hosts not
	// listed fall back to DefaultRateLimit.
	RateLimits map[string]rate.Limit
}

// DefaultRateLimit applies to hosts without an explicit limit.
const DefaultRateLimit rate.Limit = 10

// Client is an HTTP client with per-host rate limiting and retry on
// transient failures. 429 and 5xx responses are retried with the
// server-supplied Retry-After honored when present.
type Client struct {
	http           *http.Client
	userAgent      string
	retry          resilience.RetryConfig
	limiters       map[string]*rate.Limiter
	defaultLimiter *rate.Limiter
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "econpipe/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}

	limiters := make(map[string]*rate.Limiter, len(opts.RateLimits))
	for host, limit := range opts.RateLimits {
		limiters[host] = rate.NewLimiter(limit, int(limit))
	}

	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:      opts.UserAgent,
		retry:          opts.Retry,
		limiters:       limiters,
		defaultLimiter: rate.NewLimiter(DefaultRateLimit, int(DefaultRateLimit)),
	}
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return c.defaultLimiter
	}
	if lim, ok := c.limiters[u.Host]; ok {
		return lim
	}
	return c.defaultLimiter
}

// Get fetches rawURL and returns the response body. Transient failures are
// retried per the client's retry config.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiterFor(rawURL).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: build request for %s", rawURL)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(
				eris.Wrapf(err, "fetcher: get %s", rawURL), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			terr := resilience.NewTransientError(
				eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL),
				resp.StatusCode)
			terr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			return nil, terr
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(
				eris.Wrapf(err, "fetcher: read body from %s", rawURL), 0)
		}
		return body, nil
	})
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
