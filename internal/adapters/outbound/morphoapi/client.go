// Package morphoapi implements outbound.MarketIndex on top of the Morpho
// GraphQL API. Responses are decoded into explicit schemas and any GraphQL
// error list aborts the query with *entity.RemoteIndexError.
package morphoapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/httpclient"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Compile-time check that Client implements outbound.MarketIndex.
var _ outbound.MarketIndex = (*Client)(nil)

const (
	pageSize = 500
	maxPages = 20
)

var hundred = decimal.NewFromInt(100)

// ClientConfig holds configuration for the Morpho API client.
type ClientConfig struct {
	// Endpoint is the GraphQL endpoint.
	// Defaults to https://blue-api.morpho.org/graphql
	Endpoint string

	// HTTP configures timeouts, retries and rate limiting of the transport.
	HTTP httpclient.Config

	// Logger is the structured logger for the client.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics outbound.MetricsRecorder
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		Endpoint: "https://blue-api.morpho.org/graphql",
		HTTP:     httpclient.DefaultConfig(),
		Logger:   slog.Default(),
	}
}

// Client queries the Morpho GraphQL API.
type Client struct {
	endpoint string
	http     *httpclient.Client
	logger   *slog.Logger
	metrics  outbound.MetricsRecorder
}

// NewClient creates a new Morpho API client.
func NewClient(config ClientConfig) *Client {
	defaults := ClientConfigDefaults()
	if config.Endpoint == "" {
		config.Endpoint = defaults.Endpoint
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.HTTP.MaxAttempts == 0 {
		config.HTTP = defaults.HTTP
	}

	logger := config.Logger.With("component", "morpho-api-client")
	return &Client{
		endpoint: config.Endpoint,
		http:     httpclient.NewClient(config.HTTP, logger, nil),
		logger:   logger,
		metrics:  config.Metrics,
	}
}

// query runs a GraphQL query and decodes its data into out. found is false
// when the API reports NOT_FOUND for a by-key lookup.
func (c *Client) query(ctx context.Context, name, query string, vars map[string]any, out any) (found bool, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordRemoteCall(ctx, "morpho-api", name, time.Since(start), err)
		}
	}()

	var resp graphQLResponse
	if err := c.http.PostJSON(ctx, httpclient.RequestConfig{URL: c.endpoint}, graphQLRequest{Query: query, Variables: vars}, &resp); err != nil {
		return false, fmt.Errorf("querying %s: %w", name, err)
	}

	if len(resp.Errors) > 0 {
		allNotFound := true
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
			if !e.notFound() {
				allNotFound = false
			}
		}
		if allNotFound {
			return false, nil
		}
		return false, &entity.RemoteIndexError{Query: name, Messages: messages}
	}

	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return false, &entity.RemoteIndexError{Query: name, Messages: []string{"empty data"}}
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return false, fmt.Errorf("decoding %s response: %w", name, err)
	}
	return true, nil
}

// ListMarkets returns all markets on chainID in index order.
func (c *Client) ListMarkets(ctx context.Context, chainID int64) ([]entity.MarketListing, error) {
	var listings []entity.MarketListing
	for page := 0; page < maxPages; page++ {
		var resp marketsResponse
		vars := map[string]any{"chainId": chainID, "first": pageSize, "skip": page * pageSize}
		if _, err := c.query(ctx, "markets", marketsQuery, vars, &resp); err != nil {
			return nil, err
		}

		for _, item := range resp.Markets.Items {
			if !entity.IsCanonicalMarketID(item.UniqueKey) {
				c.logger.Warn("skipping market with malformed id", "uniqueKey", item.UniqueKey)
				continue
			}
			listing := entity.MarketListing{
				ID:        entity.MarketID(item.UniqueKey),
				LoanAsset: toAsset(item.LoanAsset),
			}
			if item.CollateralAsset != nil {
				listing.CollateralAsset = toAsset(*item.CollateralAsset)
			}
			listings = append(listings, listing)
		}

		fetched := page*pageSize + len(resp.Markets.Items)
		if len(resp.Markets.Items) < pageSize || fetched >= resp.Markets.PageInfo.CountTotal {
			break
		}
	}

	c.logger.Debug("listed markets", "chainId", chainID, "count", len(listings))
	return listings, nil
}

// GetMarket returns the summary of market id.
func (c *Client) GetMarket(ctx context.Context, id entity.MarketID, chainID int64) (*entity.MarketSummary, error) {
	var resp marketResponse
	found, err := c.query(ctx, "marketByUniqueKey", marketQuery, map[string]any{"uniqueKey": string(id), "chainId": chainID}, &resp)
	if err != nil {
		return nil, err
	}
	if !found || resp.Market == nil {
		return nil, &entity.ResolutionError{Kind: entity.ErrMarketNotFound, Reference: string(id), ChainID: chainID}
	}
	return toMarketSummary(*resp.Market, chainID)
}

// ListVaults returns the whitelisted vaults on chainID.
func (c *Client) ListVaults(ctx context.Context, chainID int64) ([]entity.VaultListing, error) {
	vaults, err := c.listVaultDTOs(ctx, chainID)
	if err != nil {
		return nil, err
	}
	listings := make([]entity.VaultListing, 0, len(vaults))
	for _, v := range vaults {
		if !common.IsHexAddress(v.Address) {
			continue
		}
		listings = append(listings, entity.VaultListing{
			Address: common.HexToAddress(v.Address),
			Name:    v.Name,
			Symbol:  v.Symbol,
			ChainID: chainID,
		})
	}
	return listings, nil
}

// ListVaultData returns full data for every whitelisted vault on chainID.
func (c *Client) ListVaultData(ctx context.Context, chainID int64) ([]entity.VaultData, error) {
	vaults, err := c.listVaultDTOs(ctx, chainID)
	if err != nil {
		return nil, err
	}
	out := make([]entity.VaultData, 0, len(vaults))
	for _, v := range vaults {
		data, err := toVaultData(v, chainID)
		if err != nil {
			c.logger.Warn("skipping malformed vault", "address", v.Address, "error", err)
			continue
		}
		out = append(out, *data)
	}
	return out, nil
}

func (c *Client) listVaultDTOs(ctx context.Context, chainID int64) ([]vaultDTO, error) {
	var all []vaultDTO
	for page := 0; page < maxPages; page++ {
		var resp vaultsResponse
		vars := map[string]any{"chainId": chainID, "first": pageSize, "skip": page * pageSize}
		if _, err := c.query(ctx, "vaults", vaultsQuery, vars, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Vaults.Items...)
		if len(resp.Vaults.Items) < pageSize || len(all) >= resp.Vaults.PageInfo.CountTotal {
			break
		}
	}
	return all, nil
}

// GetVault returns full data for the vault at address.
func (c *Client) GetVault(ctx context.Context, address common.Address, chainID int64) (*entity.VaultData, error) {
	var resp vaultResponse
	found, err := c.query(ctx, "vaultByAddress", vaultQuery, map[string]any{"address": address.Hex(), "chainId": chainID}, &resp)
	if err != nil {
		return nil, err
	}
	if !found || resp.Vault == nil {
		return nil, &entity.ResolutionError{Kind: entity.ErrVaultNotFound, Reference: address.Hex(), ChainID: chainID}
	}
	return toVaultData(*resp.Vault, chainID)
}

// GetVaultAssetDecimals returns the decimals of the vault's underlying asset.
func (c *Client) GetVaultAssetDecimals(ctx context.Context, vault common.Address, chainID int64) (int, error) {
	v, err := c.GetVault(ctx, vault, chainID)
	if err != nil {
		return 0, err
	}
	return v.Asset.Decimals, nil
}

// GetUserMarketIDs returns the markets user has a position record in. A user
// unknown to the index has none.
func (c *Client) GetUserMarketIDs(ctx context.Context, user common.Address, chainID int64) ([]entity.MarketID, error) {
	var resp userPositionsResponse
	found, err := c.query(ctx, "userByAddress", userPositionsQuery, map[string]any{"address": user.Hex(), "chainId": chainID}, &resp)
	if err != nil {
		return nil, err
	}
	if !found || resp.User == nil {
		return nil, nil
	}

	ids := make([]entity.MarketID, 0, len(resp.User.MarketPositions))
	seen := make(map[string]struct{}, len(resp.User.MarketPositions))
	for _, p := range resp.User.MarketPositions {
		key := strings.ToLower(p.Market.UniqueKey)
		if !entity.IsCanonicalMarketID(key) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, entity.MarketID(p.Market.UniqueKey))
	}
	return ids, nil
}

func toAsset(a assetDTO) entity.Asset {
	return entity.Asset{
		Address:  common.HexToAddress(a.Address),
		Symbol:   a.Symbol,
		Decimals: a.Decimals,
	}
}

// toMarketSummary converts index units: LLTV is a WAD fraction and APYs are
// fractions, both become percentages.
func toMarketSummary(m marketDTO, chainID int64) (*entity.MarketSummary, error) {
	s := entity.MarketSummary{
		ID:        entity.MarketID(m.UniqueKey),
		ChainID:   chainID,
		LoanAsset: toAsset(m.LoanAsset),
		LLTV:      m.LLTV.Shift(-18).Mul(hundred),
	}
	if m.CollateralAsset != nil {
		s.CollateralAsset = toAsset(*m.CollateralAsset)
	}
	if m.State != nil {
		s.SupplyAPY = orZero(m.State.SupplyAPY).Mul(hundred)
		s.BorrowAPY = orZero(m.State.BorrowAPY).Mul(hundred)
		s.TotalSupplyUSD = orZero(m.State.SupplyAssetsUSD)
		s.TotalBorrowUSD = orZero(m.State.BorrowAssetsUSD)
		s.LiquidityUSD = orZero(m.State.LiquidityAssetsUSD)
		s.LiquidityAssets = orZero(m.State.LiquidityAssets).Shift(-int32(s.LoanAsset.Decimals))
	}

	summary, err := entity.NewMarketSummary(s)
	if err != nil {
		return nil, fmt.Errorf("invalid market from index: %w", err)
	}
	return summary, nil
}

func toVaultData(v vaultDTO, chainID int64) (*entity.VaultData, error) {
	if !common.IsHexAddress(v.Address) {
		return nil, errors.New("invalid vault address " + v.Address)
	}

	asset := toAsset(v.Asset)
	shift := -int32(asset.Decimals)
	data := entity.VaultData{
		Address: common.HexToAddress(v.Address),
		ChainID: chainID,
		Name:    v.Name,
		Symbol:  v.Symbol,
		Asset:   asset,
	}

	if st := v.State; st != nil {
		data.TotalAssetsTokens = orZero(st.TotalAssets).Shift(shift)
		if st.TotalAssetsUSD.Valid {
			usd := st.TotalAssetsUSD.Decimal
			data.TotalAssetsUSD = &usd
		}
		data.TotalSupplyShares = toBigInt(orZero(st.TotalSupply))
		data.APY = entity.VaultAPY{
			Instant: orZero(st.APY).Mul(hundred),
			Daily:   orZero(st.DailyAPY).Mul(hundred),
			Weekly:  orZero(st.WeeklyAPY).Mul(hundred),
			Monthly: orZero(st.MonthlyAPY).Mul(hundred),
			Yearly:  orZero(st.YearlyAPY).Mul(hundred),
		}
		for _, a := range st.Allocation {
			if !entity.IsCanonicalMarketID(a.Market.UniqueKey) {
				continue
			}
			data.Allocations = append(data.Allocations, entity.VaultAllocation{
				MarketID:       entity.MarketID(a.Market.UniqueKey),
				SuppliedAssets: orZero(a.SupplyAssets).Shift(shift),
				SupplyCap:      orZero(a.SupplyCap).Shift(shift),
			})
		}
	}

	return entity.NewVaultData(data)
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func toBigInt(d decimal.Decimal) *big.Int {
	return d.Truncate(0).BigInt()
}
