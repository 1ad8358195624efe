// Package position rebuilds Morpho Blue user positions from on-chain state,
// index metadata and USD prices, and derives their liquidation risk.
package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/morphomath"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/units"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// maxInFlight bounds concurrent builds in BuildPositions.
const maxInFlight = 8

// PriceSource prices one unit of an asset in USD. Nil means unknown.
type PriceSource interface {
	USDPrice(ctx context.Context, chainID int64, asset entity.Asset) *decimal.Decimal
	USDPriceOrPeg(ctx context.Context, chainID int64, asset entity.Asset) *decimal.Decimal
}

// TokenReader reads ERC-20 metadata from chain.
type TokenReader interface {
	GetToken(ctx context.Context, chainID int64, token common.Address) (entity.Asset, error)
}

// ServiceConfig holds configuration for the position service.
type ServiceConfig struct {
	// ChainID is the chain the multicaller reads from.
	ChainID int64

	// MorphoBlue is the Morpho Blue singleton address.
	MorphoBlue common.Address

	// Logger is the structured logger for the service.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics outbound.MetricsRecorder

	// Now is the accrual clock. Defaults to time.Now.
	Now func() time.Time
}

// Service builds user positions.
type Service struct {
	chainID     int64
	morphoBlue  common.Address
	multicaller outbound.Multicaller
	index       outbound.MarketIndex
	prices      PriceSource
	tokens      TokenReader
	morphoABI   *abi.ABI
	irmABI      *abi.ABI
	logger      *slog.Logger
	metrics     outbound.MetricsRecorder
	now         func() time.Time
}

// NewService creates a position service.
func NewService(config ServiceConfig, multicaller outbound.Multicaller, index outbound.MarketIndex, prices PriceSource, tokens TokenReader) (*Service, error) {
	if multicaller == nil {
		return nil, fmt.Errorf("multicaller cannot be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if prices == nil {
		return nil, fmt.Errorf("price source cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token reader cannot be nil")
	}
	if config.ChainID <= 0 {
		return nil, fmt.Errorf("chainID must be positive, got %d", config.ChainID)
	}
	if config.MorphoBlue == (common.Address{}) {
		return nil, fmt.Errorf("morpho blue address is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	morphoABI, err := abis.GetMorphoBlueABI()
	if err != nil {
		return nil, fmt.Errorf("loading Morpho Blue ABI: %w", err)
	}
	irmABI, err := abis.GetIrmABI()
	if err != nil {
		return nil, fmt.Errorf("loading IRM ABI: %w", err)
	}

	return &Service{
		chainID:     config.ChainID,
		morphoBlue:  config.MorphoBlue,
		multicaller: multicaller,
		index:       index,
		prices:      prices,
		tokens:      tokens,
		morphoABI:   morphoABI,
		irmABI:      irmABI,
		logger:      logger.With("component", "position-builder", "chainId", config.ChainID),
		metrics:     config.Metrics,
		now:         now,
	}, nil
}

// BuildPosition derives the current position of user in market id.
func (s *Service) BuildPosition(ctx context.Context, user common.Address, id entity.MarketID) (pos *entity.UserPosition, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordPositionBuild(ctx, time.Since(start), err)
		}
	}()

	if !entity.IsCanonicalMarketID(string(id)) {
		return nil, &entity.ResolutionError{Kind: entity.ErrInvalidReference, Reference: string(id), ChainID: s.chainID}
	}

	state, err := s.readState(ctx, id, user)
	if err != nil {
		return nil, err
	}
	if state.params.LoanToken == (common.Address{}) {
		return nil, &entity.ResolutionError{Kind: entity.ErrMarketNotFound, Reference: string(id), ChainID: s.chainID, Detail: "market is not created on Morpho Blue"}
	}

	market := s.accrue(ctx, state)

	summary, err := s.marketSummary(ctx, id, state)
	if err != nil {
		return nil, err
	}

	loanDecimals := summary.LoanAsset.Decimals
	collateralDecimals := summary.CollateralAsset.Decimals

	pos = &entity.UserPosition{
		MarketID:        id,
		ChainID:         s.chainID,
		User:            user,
		CollateralAsset: summary.CollateralAsset,
		LoanAsset:       summary.LoanAsset,
		Raw: entity.PositionRaw{
			BorrowShares:  state.position.BorrowShares,
			SupplyShares:  state.position.SupplyShares,
			CollateralRaw: state.position.Collateral,
		},
	}

	borrowAssets := morphomath.ToAssetsUp(state.position.BorrowShares, market.TotalBorrowAssets, market.TotalBorrowShares)
	supplyAssets := morphomath.ToAssetsDown(state.position.SupplyShares, market.TotalSupplyAssets, market.TotalSupplyShares)

	pos.Amounts.CollateralTokens = units.FromBaseUnits(state.position.Collateral, collateralDecimals)
	pos.Amounts.LoanTokens = units.FromBaseUnits(borrowAssets, loanDecimals)

	liquidity := new(big.Int).Sub(market.TotalSupplyAssets, market.TotalBorrowAssets)
	if liquidity.Sign() < 0 {
		liquidity.SetInt64(0)
	}
	withdrawable := supplyAssets
	if withdrawable.Cmp(liquidity) > 0 {
		withdrawable = liquidity
	}

	pos.Supply.SuppliedTokens = units.FromBaseUnits(supplyAssets, loanDecimals)
	pos.Supply.WithdrawableTokens = units.FromBaseUnits(withdrawable, loanDecimals)
	pos.Supply.SupplyAPY = summary.SupplyAPY
	pos.Supply.EstimatedAnnualEarnings = pos.Supply.SuppliedTokens.Mul(summary.SupplyAPY).Div(hundred)
	pos.Supply.HasSupplied = state.position.SupplyShares.Sign() != 0 || pos.Supply.SuppliedTokens.IsPositive()

	pos.HasPosition = pos.ComputeHasPosition()

	var collateralPrice, loanPrice *decimal.Decimal
	if pos.HasPosition {
		collateralPrice, loanPrice = s.fetchPrices(ctx, summary)
	}

	pos.Amounts.CollateralUSD = usdValue(pos.Amounts.CollateralTokens, collateralPrice)
	pos.Amounts.LoanUSD = usdValue(pos.Amounts.LoanTokens, loanPrice)
	pos.Supply.SuppliedUSD = usdValue(pos.Supply.SuppliedTokens, loanPrice)
	pos.Supply.WithdrawableUSD = usdValue(pos.Supply.WithdrawableTokens, loanPrice)
	pos.Supply.EstimatedAnnualEarningsUSD = usdValue(pos.Supply.EstimatedAnnualEarnings, loanPrice)

	pos.Risk = computeRisk(pos.Amounts.CollateralTokens, pos.Amounts.LoanTokens, summary.LLTV, collateralPrice, loanPrice)

	return pos, nil
}

// marketSummary returns the index summary of the market. When the index
// cannot answer, asset metadata is read from chain and LLTV taken from the
// market params; APYs are then zero.
func (s *Service) marketSummary(ctx context.Context, id entity.MarketID, state *onChainState) (*entity.MarketSummary, error) {
	summary, err := s.index.GetMarket(ctx, id, s.chainID)
	if err == nil {
		return summary, nil
	}

	s.logger.Warn("index has no summary for market, reading metadata from chain", "market", id, "error", err)

	loan, err := s.tokens.GetToken(ctx, s.chainID, state.params.LoanToken)
	if err != nil {
		return nil, fmt.Errorf("reading loan token metadata: %w", err)
	}

	var collateral entity.Asset
	if state.params.CollateralToken != (common.Address{}) {
		collateral, err = s.tokens.GetToken(ctx, s.chainID, state.params.CollateralToken)
		if err != nil {
			return nil, fmt.Errorf("reading collateral token metadata: %w", err)
		}
	}

	return &entity.MarketSummary{
		ID:              id,
		ChainID:         s.chainID,
		CollateralAsset: collateral,
		LoanAsset:       loan,
		LLTV:            units.FromWad(state.params.LLTV).Mul(hundred),
	}, nil
}

// fetchPrices looks up the collateral and loan prices concurrently. Only the
// loan side gets the stablecoin peg.
func (s *Service) fetchPrices(ctx context.Context, summary *entity.MarketSummary) (collateral, loan *decimal.Decimal) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if summary.CollateralAsset.Address != (common.Address{}) {
			collateral = s.prices.USDPrice(ctx, s.chainID, summary.CollateralAsset)
		}
	}()
	go func() {
		defer wg.Done()
		loan = s.prices.USDPriceOrPeg(ctx, s.chainID, summary.LoanAsset)
	}()
	wg.Wait()
	return collateral, loan
}

// BuildPositions builds the positions of user in every market of ids with at
// most maxInFlight builds running at once. A failed build is logged and its
// market omitted. Only open positions are returned, ordered by market id.
//
// The batch itself fails when ctx ends before every build finished, or when
// no build succeeded at all; an empty result then would read as "no
// positions".
func (s *Service) BuildPositions(ctx context.Context, user common.Address, ids []entity.MarketID) ([]entity.UserPosition, error) {
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup
	var mu sync.Mutex
	positions := make([]entity.UserPosition, 0, len(ids))
	var failures []error
	built := 0

	for _, id := range ids {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)

		go func(id entity.MarketID) {
			defer wg.Done()
			defer func() { <-sem }()

			pos, err := s.BuildPosition(ctx, user, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("failed to build position", "user", user.Hex(), "market", id, "error", err)
				failures = append(failures, fmt.Errorf("market %s: %w", id, err))
				return
			}
			built++
			if pos.HasPosition {
				positions = append(positions, *pos)
			}
		}(id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		s.logger.Warn("position batch cancelled", "user", user.Hex(), "built", built, "markets", len(ids), "error", err)
		return nil, fmt.Errorf("building positions of %s: %w", user.Hex(), err)
	}
	if built == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("building positions of %s: every market failed: %w", user.Hex(), errors.Join(failures...))
	}
	return sortPositions(positions), nil
}

func sortPositions(positions []entity.UserPosition) []entity.UserPosition {
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].MarketID < positions[j].MarketID
	})
	return positions
}

// GetUserPositions lists the markets the index knows user in and builds the
// open positions among them.
func (s *Service) GetUserPositions(ctx context.Context, user common.Address) ([]entity.UserPosition, error) {
	ids, err := s.index.GetUserMarketIDs(ctx, user, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("listing markets of %s: %w", user.Hex(), err)
	}
	s.logger.Debug("building positions", "user", user.Hex(), "markets", len(ids))
	return s.BuildPositions(ctx, user, ids)
}
