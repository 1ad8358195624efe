// Package inbound contains the primary/inbound ports.
// These interfaces define the use cases that the application exposes.
package inbound

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
)

// LendingService defines the use cases of the Morpho position and risk engine.
// Inbound adapters (HTTP handlers, CLI) call these methods. A chainID of zero
// selects the configured chain.
type LendingService interface {
	ResolveMarket(ctx context.Context, reference string, chainID int64) (entity.MarketID, error)
	ResolveVault(ctx context.Context, reference string, chainID int64) (common.Address, error)
	GetMarketSummary(ctx context.Context, id entity.MarketID, chainID int64) (*entity.MarketSummary, error)

	// GetUserPosition builds the position of user in market id on the
	// configured chain.
	GetUserPosition(ctx context.Context, user common.Address, id entity.MarketID) (*entity.UserPosition, error)

	// GetUserPositions returns only positions with HasPosition set.
	GetUserPositions(ctx context.Context, user common.Address, chainID int64) ([]entity.UserPosition, error)

	// GetVaultData returns one vault when vaultReference is set, otherwise
	// the full whitelist.
	GetVaultData(ctx context.Context, vaultReference string, chainID int64) ([]entity.VaultData, error)

	BuildDepositPlan(ctx context.Context, req entity.DepositRequest) (*entity.VaultTransactionPlan, error)
	BuildWithdrawPlan(ctx context.Context, req entity.WithdrawRequest) (*entity.VaultTransactionPlan, error)

	// ExecutePlan submits the plan calls in order with signer, waiting for
	// each to be mined before sending the next.
	ExecutePlan(ctx context.Context, plan *entity.VaultTransactionPlan, signer *bind.TransactOpts) (*entity.ExecutionResult, error)

	// Ping checks that the index and the chain endpoint answer.
	Ping(ctx context.Context) error
}

// HealthChecker defines the interface for services that can report readiness and liveness.
type HealthChecker interface {
	// IsReady returns true once the service has reached its dependencies at least once.
	IsReady() bool

	// IsHealthy returns true while recent remote calls succeed.
	IsHealthy() bool
}
