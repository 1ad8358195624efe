// Package application contains the implementation of use cases.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/inbound"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
	"github.com/archon-research/stl/stl-morpho/internal/services/position"
	"github.com/archon-research/stl/stl-morpho/internal/services/resolver"
	"github.com/archon-research/stl/stl-morpho/internal/services/vault_tx"
)

// Compile-time checks that LendingService implements the inbound ports.
var (
	_ inbound.LendingService = (*LendingService)(nil)
	_ inbound.HealthChecker  = (*LendingService)(nil)
)

// BlockNumberReader is the liveness probe of the chain endpoint.
type BlockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// LendingConfig holds configuration for the LendingService.
type LendingConfig struct {
	// ChainID is the only chain the service answers for.
	ChainID int64

	// UnhealthyAfter is the number of consecutive failed pings after which
	// IsHealthy reports false.
	UnhealthyAfter int

	// Logger is the structured logger.
	Logger *slog.Logger
}

// LendingConfigDefaults returns default configuration.
func LendingConfigDefaults() LendingConfig {
	return LendingConfig{
		ChainID:        1,
		UnhealthyAfter: 3,
		Logger:         slog.Default(),
	}
}

// LendingService wires the resolver, position builder and vault transaction
// services behind inbound.LendingService.
type LendingService struct {
	chainID        int64
	unhealthyAfter int32

	index     outbound.MarketIndex
	chain     BlockNumberReader
	resolver  *resolver.Service
	positions *position.Service
	vaults    *vault_tx.Service

	ready        atomic.Bool
	pingFailures atomic.Int32
	logger       *slog.Logger
}

// NewLendingService creates the use-case facade.
func NewLendingService(
	config LendingConfig,
	index outbound.MarketIndex,
	chain BlockNumberReader,
	resolverSvc *resolver.Service,
	positions *position.Service,
	vaults *vault_tx.Service,
) (*LendingService, error) {
	if index == nil || chain == nil {
		return nil, fmt.Errorf("index and chain are required")
	}
	if resolverSvc == nil || positions == nil || vaults == nil {
		return nil, fmt.Errorf("resolver, position and vault services are required")
	}
	defaults := LendingConfigDefaults()
	if config.ChainID <= 0 {
		return nil, fmt.Errorf("chainID must be positive, got %d", config.ChainID)
	}
	if config.UnhealthyAfter <= 0 {
		config.UnhealthyAfter = defaults.UnhealthyAfter
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &LendingService{
		chainID:        config.ChainID,
		unhealthyAfter: int32(config.UnhealthyAfter),
		index:          index,
		chain:          chain,
		resolver:       resolverSvc,
		positions:      positions,
		vaults:         vaults,
		logger:         config.Logger.With("component", "lending-service", "chainId", config.ChainID),
	}, nil
}

// ChainID returns the configured chain.
func (s *LendingService) ChainID() int64 {
	return s.chainID
}

// resolveChain maps a requested chain id to the configured one. Zero selects it.
func (s *LendingService) resolveChain(chainID int64) (int64, error) {
	if chainID == 0 || chainID == s.chainID {
		return s.chainID, nil
	}
	return 0, fmt.Errorf("%w: %d (configured %d)", entity.ErrChainNotServed, chainID, s.chainID)
}

func (s *LendingService) ResolveMarket(ctx context.Context, reference string, chainID int64) (entity.MarketID, error) {
	chainID, err := s.resolveChain(chainID)
	if err != nil {
		return "", err
	}
	return s.resolver.ResolveMarket(ctx, reference, chainID)
}

func (s *LendingService) ResolveVault(ctx context.Context, reference string, chainID int64) (common.Address, error) {
	chainID, err := s.resolveChain(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return s.resolver.ResolveVault(ctx, reference, chainID)
}

func (s *LendingService) GetMarketSummary(ctx context.Context, id entity.MarketID, chainID int64) (*entity.MarketSummary, error) {
	chainID, err := s.resolveChain(chainID)
	if err != nil {
		return nil, err
	}
	if !entity.IsCanonicalMarketID(string(id)) {
		return nil, &entity.ResolutionError{Kind: entity.ErrInvalidReference, Reference: string(id), ChainID: chainID}
	}
	return s.index.GetMarket(ctx, id, chainID)
}

func (s *LendingService) GetUserPosition(ctx context.Context, user common.Address, id entity.MarketID) (*entity.UserPosition, error) {
	pos, err := s.positions.BuildPosition(ctx, user, id)
	if err == nil {
		s.ready.Store(true)
	}
	return pos, err
}

func (s *LendingService) GetUserPositions(ctx context.Context, user common.Address, chainID int64) ([]entity.UserPosition, error) {
	if _, err := s.resolveChain(chainID); err != nil {
		return nil, err
	}
	positions, err := s.positions.GetUserPositions(ctx, user)
	if err == nil {
		s.ready.Store(true)
	}
	return positions, err
}

func (s *LendingService) GetVaultData(ctx context.Context, vaultReference string, chainID int64) ([]entity.VaultData, error) {
	chainID, err := s.resolveChain(chainID)
	if err != nil {
		return nil, err
	}
	if vaultReference == "" {
		return s.index.ListVaultData(ctx, chainID)
	}

	address, err := s.resolver.ResolveVault(ctx, vaultReference, chainID)
	if err != nil {
		return nil, err
	}
	vault, err := s.index.GetVault(ctx, address, chainID)
	if err != nil {
		return nil, err
	}
	return []entity.VaultData{*vault}, nil
}

func (s *LendingService) BuildDepositPlan(ctx context.Context, req entity.DepositRequest) (*entity.VaultTransactionPlan, error) {
	chainID, err := s.resolveChain(req.ChainID)
	if err != nil {
		return nil, err
	}
	req.ChainID = chainID
	return s.vaults.BuildDepositPlan(ctx, req)
}

func (s *LendingService) BuildWithdrawPlan(ctx context.Context, req entity.WithdrawRequest) (*entity.VaultTransactionPlan, error) {
	chainID, err := s.resolveChain(req.ChainID)
	if err != nil {
		return nil, err
	}
	req.ChainID = chainID
	return s.vaults.BuildWithdrawPlan(ctx, req)
}

func (s *LendingService) ExecutePlan(ctx context.Context, plan *entity.VaultTransactionPlan, signer *bind.TransactOpts) (*entity.ExecutionResult, error) {
	return s.vaults.ExecutePlan(ctx, plan, signer)
}

// Ping checks that the chain endpoint and the index answer.
func (s *LendingService) Ping(ctx context.Context) error {
	err := s.ping(ctx)
	if err != nil {
		failures := s.pingFailures.Add(1)
		s.logger.Warn("ping failed", "consecutiveFailures", failures, "error", err)
		return err
	}
	s.pingFailures.Store(0)
	s.ready.Store(true)
	return nil
}

func (s *LendingService) ping(ctx context.Context) error {
	if _, err := s.chain.BlockNumber(ctx); err != nil {
		return fmt.Errorf("chain endpoint: %w", err)
	}
	if _, err := s.index.ListVaults(ctx, s.chainID); err != nil {
		return fmt.Errorf("market index: %w", err)
	}
	return nil
}

// Monitor pings the dependencies every interval until ctx is done.
func (s *LendingService) Monitor(ctx context.Context, interval time.Duration) {
	_ = s.Ping(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Ping(ctx)
		}
	}
}

// IsReady reports whether the dependencies answered at least once.
func (s *LendingService) IsReady() bool {
	return s.ready.Load()
}

// IsHealthy reports false after UnhealthyAfter consecutive failed pings.
func (s *LendingService) IsHealthy() bool {
	return s.pingFailures.Load() < s.unhealthyAfter
}
