// Package pricing turns token amounts into USD using an ordered chain of
// price providers. A missing price is never an error: callers get nil and
// leave the affected USD fields empty.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Price lookup outcomes reported to the metrics recorder besides provider names.
const (
	OutcomeStableFallback = "stable_fallback"
	OutcomeUnavailable    = "unavailable"
)

// ServiceConfig holds configuration for the pricing service.
type ServiceConfig struct {
	// Timeout bounds one lookup across all providers. Defaults to 5s.
	Timeout time.Duration

	// Logger is the structured logger for the service.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics outbound.MetricsRecorder
}

// ServiceConfigDefaults returns a config with default values.
func ServiceConfigDefaults() ServiceConfig {
	return ServiceConfig{
		Timeout: 5 * time.Second,
		Logger:  slog.Default(),
	}
}

// Service queries providers in order and returns the first positive price.
type Service struct {
	providers []outbound.TokenPriceProvider
	timeout   time.Duration
	logger    *slog.Logger
	metrics   outbound.MetricsRecorder
}

// NewService creates a pricing service. Providers are tried in the order given.
func NewService(config ServiceConfig, providers ...outbound.TokenPriceProvider) (*Service, error) {
	for i, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("provider %d cannot be nil", i)
		}
	}

	defaults := ServiceConfigDefaults()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Service{
		providers: providers,
		timeout:   config.Timeout,
		logger:    config.Logger.With("component", "pricing"),
		metrics:   config.Metrics,
	}, nil
}

// USDPrice returns the USD price of one unit of asset, or nil when no
// provider answers within the timeout.
func (s *Service) USDPrice(ctx context.Context, chainID int64, asset entity.Asset) *decimal.Decimal {
	price, source := s.lookup(ctx, chainID, asset)
	if price == nil {
		s.recordOutcome(ctx, OutcomeUnavailable)
		return nil
	}
	s.recordOutcome(ctx, source)
	return price
}

// USDPriceOrPeg is USDPrice with a 1.0 USD fallback for known USD
// stablecoins.
func (s *Service) USDPriceOrPeg(ctx context.Context, chainID int64, asset entity.Asset) *decimal.Decimal {
	price, source := s.lookup(ctx, chainID, asset)
	if price != nil {
		s.recordOutcome(ctx, source)
		return price
	}
	if blockchain.IsStableSymbol(asset.Symbol) {
		s.logger.Info("no price feed, using stablecoin peg", "symbol", asset.Symbol, "token", asset.Address.Hex())
		s.recordOutcome(ctx, OutcomeStableFallback)
		one := decimal.NewFromInt(1)
		return &one
	}
	s.recordOutcome(ctx, OutcomeUnavailable)
	return nil
}

func (s *Service) lookup(ctx context.Context, chainID int64, asset entity.Asset) (*decimal.Decimal, string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for _, provider := range s.providers {
		start := time.Now()
		tp, err := provider.GetTokenPrice(ctx, chainID, asset.Address)
		if s.metrics != nil {
			s.metrics.RecordRemoteCall(ctx, provider.Name(), "token_price", time.Since(start), ignoreNoPair(err))
		}

		switch {
		case err == nil && tp != nil && tp.PriceUSD.IsPositive():
			price := tp.PriceUSD
			return &price, provider.Name()
		case err == nil, errors.Is(err, outbound.ErrNoPairFound):
			s.logger.Debug("no price from provider", "provider", provider.Name(), "token", asset.Address.Hex())
		case ctx.Err() != nil:
			s.logger.Warn("price lookup timed out", "provider", provider.Name(), "token", asset.Address.Hex(), "timeout", s.timeout)
			return nil, ""
		default:
			s.logger.Warn("price provider failed", "provider", provider.Name(), "token", asset.Address.Hex(), "error", err)
		}
	}
	return nil, ""
}

func ignoreNoPair(err error) error {
	if errors.Is(err, outbound.ErrNoPairFound) {
		return nil
	}
	return err
}

func (s *Service) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordPriceLookup(ctx, outcome)
	}
}
