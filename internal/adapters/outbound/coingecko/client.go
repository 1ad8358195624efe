// Package coingecko implements the TokenPriceProvider interface using
// CoinGecko's token price API. It is the fallback source behind DexScreener:
//   - Automatic retry logic with exponential backoff for transient failures
//   - Rate limiting to stay within API limits
//   - Works keyless against the public API, or with a Pro key
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/httpclient"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Compile-time check that Client implements outbound.TokenPriceProvider.
var _ outbound.TokenPriceProvider = (*Client)(nil)

const (
	publicBaseURL = "https://api.coingecko.com/api/v3"
	proBaseURL    = "https://pro-api.coingecko.com/api/v3"
)

// ClientConfig holds configuration for the CoinGecko client.
type ClientConfig struct {
	// APIKey is the CoinGecko Pro API key. Empty uses the public API.
	APIKey string

	// BaseURL is the CoinGecko API base URL. Defaults depend on APIKey.
	BaseURL string

	// Timeout is the maximum time to wait for a single HTTP request.
	Timeout time.Duration

	// MaxRetries is the maximum number of attempts for transient failures.
	MaxRetries int

	// InitialBackoff is the initial delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each retry.
	BackoffFactor float64

	// RateLimitPerMin is the rate limit in requests per minute.
	// Defaults to 450 with a key and 25 on the public API.
	RateLimitPerMin int

	// Logger is the structured logger for the client.
	Logger *slog.Logger
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		Timeout:        10 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Logger:         slog.Default(),
	}
}

// Client implements TokenPriceProvider using CoinGecko's API.
type Client struct {
	config ClientConfig
	http   *httpclient.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewClient creates a new CoinGecko API client.
func NewClient(config ClientConfig) *Client {
	applyDefaults(&config, ClientConfigDefaults())

	logger := config.Logger.With("component", "coingecko-client")
	httpCfg := httpclient.Config{
		Timeout:        config.Timeout,
		MaxAttempts:    config.MaxRetries,
		InitialBackoff: config.InitialBackoff,
		MaxBackoff:     config.MaxBackoff,
		BackoffFactor:  config.BackoffFactor,
		RateLimit:      rate.Limit(float64(config.RateLimitPerMin) / 60.0),
		RateBurst:      1,
	}

	return &Client{
		config: config,
		http:   httpclient.NewClient(httpCfg, logger, parseError),
		logger: logger,
		now:    time.Now,
	}
}

func applyDefaults(config *ClientConfig, defaults ClientConfig) {
	if config.BaseURL == "" {
		if config.APIKey != "" {
			config.BaseURL = proBaseURL
		} else {
			config.BaseURL = publicBaseURL
		}
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.RateLimitPerMin == 0 {
		if config.APIKey != "" {
			config.RateLimitPerMin = 450
		} else {
			config.RateLimitPerMin = 25
		}
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}

// parseError turns CoinGecko error bodies into errors. Successful responses
// never carry one.
func parseError(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	var apiErr coinGeckoError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.message() != "" {
		return fmt.Errorf("API error (HTTP %d): %s", statusCode, apiErr.message())
	}
	return nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "coingecko"
}

// GetTokenPrice fetches the USD price of a token contract on chainID.
// Uses the /simple/token_price/{platform} endpoint.
func (c *Client) GetTokenPrice(ctx context.Context, chainID int64, token common.Address) (*entity.TokenPrice, error) {
	chain, ok := blockchain.GetChainConfig(chainID)
	if !ok {
		return nil, fmt.Errorf("coingecko: unsupported chain %d", chainID)
	}

	params := url.Values{
		"contract_addresses":      {strings.ToLower(token.Hex())},
		"vs_currencies":           {"usd"},
		"include_24hr_vol":        {"true"},
		"include_last_updated_at": {"true"},
	}
	reqCfg := httpclient.RequestConfig{
		URL: fmt.Sprintf("%s/simple/token_price/%s?%s", c.config.BaseURL, chain.CoinGeckoPlatform, params.Encode()),
	}
	if c.config.APIKey != "" {
		reqCfg.Headers = map[string]string{"x-cg-pro-api-key": c.config.APIKey}
	}

	var response tokenPriceResponse
	if err := c.http.Get(ctx, reqCfg, &response); err != nil {
		return nil, fmt.Errorf("fetching token price for %s: %w", token.Hex(), err)
	}

	data, ok := response[strings.ToLower(token.Hex())]
	if !ok || !data.USD.Valid || !data.USD.Decimal.IsPositive() {
		return nil, outbound.ErrNoPairFound
	}

	price := &entity.TokenPrice{
		ChainID:   chainID,
		Address:   token,
		PriceUSD:  data.USD.Decimal,
		Source:    c.Name(),
		FetchedAt: c.now(),
	}
	if data.USD24hVol.Valid {
		price.Volume24hUSD = data.USD24hVol.Decimal
	}
	if data.LastUpdated > 0 {
		price.FetchedAt = time.Unix(data.LastUpdated, 0)
	}
	return price, nil
}
