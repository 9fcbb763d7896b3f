// Package upstream is the shared HTTP plumbing for the USGS, EPA and NOAA
// clients: timeouts, per-provider rate limiting, request logging and metrics.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/observability"
	"golang.org/x/time/rate"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// DefaultMaxBodyBytes bounds a single upstream response when
// Options.MaxBodyBytes is zero. NHD flowline collections for a 2x2 degree
// box are the largest payloads we read.
const DefaultMaxBodyBytes = 64 << 20

// Options configures a Client.
type Options struct {
	Provider     string
	Timeout      time.Duration
	RPS          float64 // <= 0 disables rate limiting
	MaxBodyBytes int64   // <= 0 means DefaultMaxBodyBytes
	Headers      map[string]string
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	HTTPClient   *http.Client
}

// Client performs GET requests against one upstream provider.
type Client struct {
	provider   string
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    map[string]string
	logger     *slog.Logger
	metrics    *observability.Metrics
	maxBody    int64
}

// New creates a Client. A nil HTTPClient gets a fresh one with the
// configured timeout.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &Client{
		provider:   opts.Provider,
		httpClient: hc,
		limiter:    limiter,
		headers:    opts.Headers,
		logger:     logger.With("provider", opts.Provider),
		metrics:    opts.Metrics,
		maxBody:    maxBody,
	}
}

// Provider returns the name used in logs, metrics and errors.
func (c *Client) Provider() string { return c.provider }

// Logger returns the provider-scoped logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Get fetches rawURL and returns the body. Any non-2xx status is returned as
// a *StatusError; errors.Is(err, ErrNotFound) reports a 404.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit: %w", c.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.provider, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	logRequest(ctx, c.logger, req.Method, rawURL)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(start, "error")
		logError(ctx, c.logger, "request", err)
		return nil, fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	// One byte past the limit tells a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		c.observe(start, "error")
		logError(ctx, c.logger, "read body", err)
		return nil, fmt.Errorf("read %s response: %w", c.provider, err)
	}
	if int64(len(body)) > c.maxBody {
		c.observe(start, "error")
		logError(ctx, c.logger, "read body", ErrBodyTooLarge)
		return nil, fmt.Errorf("%s response over %d bytes: %w", c.provider, c.maxBody, ErrBodyTooLarge)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome := "error"
		if resp.StatusCode == http.StatusNotFound {
			outcome = "not_found"
		}
		c.observe(start, outcome)
		logResponse(ctx, c.logger, resp.StatusCode, time.Since(start), len(body))
		return nil, &StatusError{Provider: c.provider, Status: resp.StatusCode, Body: truncate(body, 512)}
	}

	c.observe(start, "success")
	logResponse(ctx, c.logger, resp.StatusCode, time.Since(start), len(body))
	return body, nil
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	return nil
}

// GetText fetches rawURL and returns the body as a string.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) observe(start time.Time, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamRequests.WithLabelValues(c.provider, outcome).Inc()
	c.metrics.UpstreamDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
}

// IgnoreNotFound turns a 404 into a nil error.
func IgnoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
