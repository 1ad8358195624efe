// Package dexscreener implements outbound.TokenPriceProvider using the
// DexScreener public API. The price of a token is taken from its deepest
// pair on the requested chain.
package dexscreener

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/httpclient"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Compile-time check that Client implements outbound.TokenPriceProvider.
var _ outbound.TokenPriceProvider = (*Client)(nil)

// ClientConfig holds configuration for the DexScreener client.
type ClientConfig struct {
	// BaseURL defaults to https://api.dexscreener.com
	BaseURL string

	// HTTP configures the transport. DexScreener allows 300 requests per
	// minute on the token endpoints.
	HTTP httpclient.Config

	Logger *slog.Logger
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = 5 * time.Second
	httpCfg.MaxAttempts = 2
	httpCfg.RateLimit = rate.Limit(5)
	return ClientConfig{
		BaseURL: "https://api.dexscreener.com",
		HTTP:    httpCfg,
		Logger:  slog.Default(),
	}
}

// Client fetches token prices from DexScreener.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient creates a new DexScreener client.
func NewClient(config ClientConfig) *Client {
	defaults := ClientConfigDefaults()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.HTTP.MaxAttempts == 0 {
		config.HTTP = defaults.HTTP
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	logger := config.Logger.With("component", "dexscreener-client")
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    httpclient.NewClient(config.HTTP, logger, nil),
		logger:  logger,
		now:     time.Now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "dexscreener"
}

// GetTokenPrice returns the USD price of token from its most liquid pair on
// chainID where token is the base token.
func (c *Client) GetTokenPrice(ctx context.Context, chainID int64, token common.Address) (*entity.TokenPrice, error) {
	chain, ok := blockchain.GetChainConfig(chainID)
	if !ok {
		return nil, fmt.Errorf("dexscreener: unsupported chain %d", chainID)
	}

	var resp tokenPairsResponse
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, token.Hex())
	if err := c.http.Get(ctx, httpclient.RequestConfig{URL: url}, &resp); err != nil {
		return nil, fmt.Errorf("fetching pairs for %s: %w", token.Hex(), err)
	}

	best, found := bestPair(resp.Pairs, chain.DexScreenerChain, token)
	if !found {
		return nil, outbound.ErrNoPairFound
	}

	price := &entity.TokenPrice{
		ChainID:   chainID,
		Address:   token,
		PriceUSD:  best.PriceUSD.Decimal,
		Source:    c.Name(),
		FetchedAt: c.now(),
	}
	if best.Liquidity != nil {
		price.LiquidityUSD = nullOrZero(best.Liquidity.USD)
	}
	if best.Volume != nil {
		price.Volume24hUSD = nullOrZero(best.Volume.H24)
	}

	c.logger.Debug("price found",
		"token", token.Hex(),
		"pair", best.PairAddress,
		"dex", best.DexID,
		"priceUsd", price.PriceUSD.String(),
	)
	return price, nil
}

// bestPair picks the pair with the highest USD liquidity among pairs on
// chain whose base token is token and that carry a positive USD price.
func bestPair(pairs []pairDTO, chain string, token common.Address) (pairDTO, bool) {
	var (
		best      pairDTO
		bestLiq   decimal.Decimal
		haveMatch bool
	)
	for _, p := range pairs {
		if !strings.EqualFold(p.ChainID, chain) {
			continue
		}
		if !strings.EqualFold(p.BaseToken.Address, token.Hex()) {
			continue
		}
		if !p.PriceUSD.Valid || !p.PriceUSD.Decimal.IsPositive() {
			continue
		}
		liq := decimal.Zero
		if p.Liquidity != nil {
			liq = nullOrZero(p.Liquidity.USD)
		}
		if !haveMatch || liq.GreaterThan(bestLiq) {
			best, bestLiq, haveMatch = p, liq, true
		}
	}
	return best, haveMatch
}

func nullOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
