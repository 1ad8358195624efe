// Package httpclient provides a shared HTTP client with retry logic and rate
// limiting for the external JSON APIs the service talks to (the Morpho index,
// DexScreener, CoinGecko).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/archon-research/stl/stl-morpho/internal/pkg/retry"
)

// Config holds the configuration for the HTTP client.
type Config struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	RateLimit      rate.Limit
	RateBurst      int

	// HTTPClient is an optional custom HTTP client (tests inject httptest clients).
	HTTPClient *http.Client
}

// DefaultConfig returns sensible defaults for the HTTP client.
func DefaultConfig() Config {
	return Config{
		Timeout:        15 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		RateLimit:      rate.Limit(5),
		RateBurst:      1,
	}
}

// RequestConfig holds per-request configuration.
type RequestConfig struct {
	URL     string
	Headers map[string]string
}

// ErrorParser parses API-specific error responses.
// It returns an error if the response body contains an API error, or nil if no error.
type ErrorParser func(statusCode int, body []byte) error

// Client wraps an HTTP client with retry logic and rate limiting.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	policy      retry.Policy
	logger      *slog.Logger
	errorParser ErrorParser
}

// NewClient creates a new HTTP client with the given configuration.
func NewClient(cfg Config, logger *slog.Logger, errorParser ErrorParser) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if errorParser == nil {
		errorParser = func(_ int, _ []byte) error { return nil }
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaults.RateBurst
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		policy: retry.Policy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BackoffFactor:  cfg.BackoffFactor,
		},
		logger:      logger,
		errorParser: errorParser,
	}
}

// Get performs an HTTP GET request and decodes the JSON response into result.
func (c *Client) Get(ctx context.Context, reqCfg RequestConfig, result any) error {
	return c.do(ctx, http.MethodGet, reqCfg, nil, result)
}

// PostJSON marshals payload, POSTs it and decodes the JSON response into result.
func (c *Client) PostJSON(ctx context.Context, reqCfg RequestConfig, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, reqCfg, body, result)
}

func (c *Client) do(ctx context.Context, method string, reqCfg RequestConfig, body []byte, result any) error {
	onRetry := func(attempt int, err error, backoff time.Duration) {
		c.logger.Warn("request failed, retrying",
			"method", method,
			"attempt", attempt,
			"maxAttempts", c.policy.MaxAttempts,
			"backoff", backoff,
			"error", err,
		)
	}

	return retry.DoVoid(ctx, c.policy, onRetry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.NonRetryable(fmt.Errorf("rate limiter: %w", err))
		}
		return c.doSingleRequest(ctx, method, reqCfg, body, result)
	})
}

func (c *Client) doSingleRequest(ctx context.Context, method string, reqCfg RequestConfig, body []byte, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqCfg.URL, reader)
	if err != nil {
		return retry.NonRetryable(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range reqCfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (HTTP 429)")
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error (HTTP %d)", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		if apiErr := c.errorParser(resp.StatusCode, respBody); apiErr != nil {
			return retry.NonRetryable(apiErr)
		}
		return retry.NonRetryable(fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, string(respBody)))
	}

	// API-specific errors in successful responses decide their own retryability.
	if apiErr := c.errorParser(resp.StatusCode, respBody); apiErr != nil {
		return apiErr
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return retry.NonRetryable(fmt.Errorf("parsing response: %w", err))
	}

	return nil
}
