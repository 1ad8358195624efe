// Package resolver maps human references to canonical Morpho identifiers:
// "Collateral/Loan" pairs to market ids, and vault names to addresses.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Service resolves market and vault references against the remote index.
type Service struct {
	index  outbound.MarketIndex
	logger *slog.Logger
}

// NewService creates a resolver backed by index.
func NewService(index outbound.MarketIndex, logger *slog.Logger) (*Service, error) {
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		index:  index,
		logger: logger.With("component", "resolver"),
	}, nil
}

// ResolveMarket returns the market id for reference. A canonical id is
// returned as given without consulting the index. Otherwise reference must
// be "Collateral/Loan" and the first listed market matching both sides wins.
func (s *Service) ResolveMarket(ctx context.Context, reference string, chainID int64) (entity.MarketID, error) {
	if entity.IsCanonicalMarketID(reference) {
		return entity.MarketID(reference), nil
	}

	collateral, loan, err := splitPair(reference)
	if err != nil {
		return "", &entity.ResolutionError{Kind: entity.ErrInvalidReference, Reference: reference, ChainID: chainID, Detail: err.Error()}
	}

	markets, err := s.index.ListMarkets(ctx, chainID)
	if err != nil {
		return "", fmt.Errorf("listing markets on chain %d: %w", chainID, err)
	}

	chain, _ := blockchain.GetChainConfig(chainID)
	matchCollateral := sideMatcher(chain, collateral)
	matchLoan := sideMatcher(chain, loan)

	for _, m := range markets {
		if matchCollateral(m.CollateralAsset) && matchLoan(m.LoanAsset) {
			s.logger.Debug("resolved market", "reference", reference, "market", m.ID, "chainId", chainID)
			return m.ID, nil
		}
	}

	return "", &entity.ResolutionError{
		Kind:      entity.ErrMarketNotFound,
		Reference: reference,
		ChainID:   chainID,
		Detail:    fmt.Sprintf("no market with collateral %s and loan %s among %d listed", collateral, loan, len(markets)),
	}
}

func splitPair(reference string) (string, string, error) {
	parts := strings.Split(reference, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected COLLATERAL/LOAN")
	}
	collateral := strings.TrimSpace(parts[0])
	loan := strings.TrimSpace(parts[1])
	if collateral == "" || loan == "" {
		return "", "", fmt.Errorf("both sides of the pair must be set")
	}
	return collateral, loan, nil
}

// sideMatcher matches by address when the symbol is in the chain's known
// token registry and by case-insensitive symbol otherwise.
func sideMatcher(chain blockchain.ChainConfig, symbol string) func(entity.Asset) bool {
	if addr, ok := chain.KnownToken(symbol); ok {
		return func(a entity.Asset) bool { return a.Address == addr }
	}
	return func(a entity.Asset) bool { return strings.EqualFold(a.Symbol, symbol) }
}

// ResolveVault returns the vault address for reference: a hex address as
// given, else the first whitelisted vault whose name equals reference
// (case-insensitively), else the first whose name contains it.
func (s *Service) ResolveVault(ctx context.Context, reference string, chainID int64) (common.Address, error) {
	trimmed := strings.TrimSpace(reference)
	if common.IsHexAddress(trimmed) {
		return common.HexToAddress(trimmed), nil
	}
	if trimmed == "" {
		return common.Address{}, &entity.ResolutionError{Kind: entity.ErrInvalidReference, Reference: reference, ChainID: chainID}
	}

	vaults, err := s.index.ListVaults(ctx, chainID)
	if err != nil {
		return common.Address{}, fmt.Errorf("listing vaults on chain %d: %w", chainID, err)
	}

	for _, v := range vaults {
		if strings.EqualFold(v.Name, trimmed) {
			return v.Address, nil
		}
	}

	needle := strings.ToLower(trimmed)
	for _, v := range vaults {
		if strings.Contains(strings.ToLower(v.Name), needle) {
			s.logger.Debug("resolved vault by substring", "reference", reference, "vault", v.Name)
			return v.Address, nil
		}
	}

	return common.Address{}, &entity.ResolutionError{Kind: entity.ErrVaultNotFound, Reference: reference, ChainID: chainID}
}
