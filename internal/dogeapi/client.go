// Package dogeapi pages through the public DOGE API and returns complete
// datasets.
package dogeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"dogedash/internal/core"
	applog "dogedash/internal/log"
)

const (
	DefaultBaseURL = "https://api.doge.gov"
	DefaultPerPage = 500
	DefaultRetries = 3
	DefaultTimeout = 30 * time.Second
	UserAgent      = "DOGE-Report-Utility/0.1.0"

	StatisticsEndpoint = "/payments/statistics"

	defaultRetryAfter = 5 * time.Second
	// 429s do not consume the retry budget, but are still bounded
	maxRateLimited = 20
)

// StatisticsDimensions are the reports carried by the statistics endpoint.
var StatisticsDimensions = []string{"agency", "request_date", "org_names"}

var (
	ErrForbidden = errors.New("access forbidden: the API may require an API key")
	ErrAPI       = errors.New("api error")
	ErrRequest   = errors.New("request failed")
)

// Client talks to the DOGE API.
type Client struct {
	base    *url.URL
	http    *http.Client
	apiKey  string
	perPage int
	retries int
	limiter *rate.Limiter
	reg     *core.Registry
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client) error

func WithAPIKey(key string) Option {
	return func(c *Client) error { c.apiKey = key; return nil }
}

func WithPerPage(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("per page must be positive, got %d", n)
		}
		c.perPage = n
		return nil
	}
}

func WithRetries(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("retries must not be negative, got %d", n)
		}
		c.retries = n
		return nil
	}
}

// WithRate paces requests to rps per second. Zero or less disables pacing.
func WithRate(rps float64) Option {
	return func(c *Client) error {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
		return nil
	}
}

// WithProxy routes requests through proxyURL. Empty falls back to the
// HTTP_PROXY and HTTPS_PROXY environment variables.
func WithProxy(proxyURL string) Option {
	return func(c *Client) error {
		if proxyURL == "" {
			return nil
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		c.http.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error { c.http.Timeout = d; return nil }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error { c.http = hc; return nil }
}

func WithRegistry(reg *core.Registry) Option {
	return func(c *Client) error { c.reg = reg; return nil }
}

// New returns a client for the API at baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		base:    base,
		http:    &http.Client{Timeout: DefaultTimeout, Transport: &http.Transport{Proxy: http.ProxyFromEnvironment}},
		perPage: DefaultPerPage,
		retries: DefaultRetries,
		limiter: rate.NewLimiter(rate.Inf, 1),
		reg:     core.DefaultRegistry(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type envelope struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Result  map[string]json.RawMessage `json:"result"`
	Meta    struct {
		Pages int `json:"pages"`
	} `json:"meta"`
}

// Fetch returns every record of kind from its API endpoint.
func (c *Client) Fetch(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	cfg, err := c.reg.Config(kind)
	if err != nil {
		return nil, err
	}
	return c.FetchAll(ctx, cfg.APIEndpoint)
}

// FetchAll pages through endpoint until a page is empty or the reported
// page count is reached. Items are read from result.<last path segment>.
func (c *Client) FetchAll(ctx context.Context, endpoint string) ([]core.Record, error) {
	key := path.Base(endpoint)
	var all []core.Record
	for page := 1; ; page++ {
		env, err := c.page(ctx, endpoint, page)
		if err != nil {
			return nil, err
		}
		items, err := decodeItems(env.Result, key)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", endpoint, page, err)
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		slog.InfoContext(ctx, "Fetched page",
			applog.FieldComponent, applog.ComponentAPI,
			"endpoint", endpoint,
			applog.FieldPage, page,
			"pages", env.Meta.Pages,
			applog.FieldRecords, len(items))

		if page >= env.Meta.Pages {
			break
		}
	}
	if all == nil {
		all = []core.Record{}
	}
	return all, nil
}

// Statistics returns the three payment statistics reports keyed by
// dimension.
func (c *Client) Statistics(ctx context.Context) (map[string][]core.Record, error) {
	env, err := c.page(ctx, StatisticsEndpoint, 1)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]core.Record, len(StatisticsDimensions))
	for _, dim := range StatisticsDimensions {
		items, err := decodeItems(env.Result, dim)
		if err != nil {
			return nil, fmt.Errorf("statistics %s: %w", dim, err)
		}
		out[dim] = items
	}
	return out, nil
}

func decodeItems(result map[string]json.RawMessage, key string) ([]core.Record, error) {
	raw, ok := result[key]
	if !ok {
		return nil, nil
	}
	var items []core.Record
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: result.%s is not a list of objects", ErrAPI, key)
	}
	return items, nil
}

func (c *Client) page(ctx context.Context, endpoint string, page int) (*envelope, error) {
	u := c.base.JoinPath(endpoint)
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.perPage))
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrAPI, endpoint, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, fmt.Errorf("%w: %s", ErrAPI, msg)
	}
	return &env, nil
}

// get performs one GET with the retry policy: 429 waits for Retry-After,
// 5xx and transport errors back off 2^n seconds up to the retry budget,
// 403 and other statuses fail at once.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	attempt, limited := 0, 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, status, retryAfter, err := c.do(ctx, u)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= c.retries {
				return nil, fmt.Errorf("%w: %v", ErrRequest, err)
			}
			attempt++
			slog.WarnContext(ctx, "Connection error, retrying",
				applog.FieldComponent, applog.ComponentAPI,
				"attempt", attempt,
				applog.FieldError, err)
			if err := c.sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
		case status == http.StatusTooManyRequests:
			if limited >= maxRateLimited {
				return nil, fmt.Errorf("%w: rate limited %d times", ErrRequest, limited)
			}
			limited++
			slog.WarnContext(ctx, "Rate limit exceeded, waiting",
				applog.FieldComponent, applog.ComponentAPI,
				"wait", retryAfter.String())
			if err := c.sleep(ctx, retryAfter); err != nil {
				return nil, err
			}
		case status == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrForbidden, snippet(body))
		case status >= 500:
			if attempt >= c.retries {
				return nil, fmt.Errorf("%w: status %d: %s", ErrRequest, status, snippet(body))
			}
			attempt++
			slog.WarnContext(ctx, "Server error, retrying",
				applog.FieldComponent, applog.ComponentAPI,
				applog.FieldStatusCode, status,
				"attempt", attempt)
			if err := c.sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
		case status < 200 || status > 299:
			return nil, fmt.Errorf("%w: status %d: %s", ErrRequest, status, snippet(body))
		default:
			return body, nil
		}
	}
}

func (c *Client) do(ctx context.Context, u string) ([]byte, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, err
	}
	return body, resp.StatusCode, retryAfter(resp.Header.Get("Retry-After")), nil
}

func retryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
