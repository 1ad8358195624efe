package outbound

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
)

// MarketIndex is the remote indexing service for Morpho markets and vaults.
// Any error list returned by the service surfaces as *entity.RemoteIndexError.
type MarketIndex interface {
	// ListMarkets returns all markets listed for chainID, in index order.
	ListMarkets(ctx context.Context, chainID int64) ([]entity.MarketListing, error)

	// GetMarket returns the summary of a single market.
	GetMarket(ctx context.Context, id entity.MarketID, chainID int64) (*entity.MarketSummary, error)

	// ListVaults returns the whitelisted vaults for chainID.
	ListVaults(ctx context.Context, chainID int64) ([]entity.VaultListing, error)

	// ListVaultData returns full data for every whitelisted vault.
	ListVaultData(ctx context.Context, chainID int64) ([]entity.VaultData, error)

	// GetVault returns full data for one vault.
	GetVault(ctx context.Context, address common.Address, chainID int64) (*entity.VaultData, error)

	// GetUserMarketIDs returns the markets the user has interacted with.
	GetUserMarketIDs(ctx context.Context, user common.Address, chainID int64) ([]entity.MarketID, error)

	// GetVaultAssetDecimals returns the decimals of the vault's underlying asset.
	GetVaultAssetDecimals(ctx context.Context, vault common.Address, chainID int64) (int, error)
}
