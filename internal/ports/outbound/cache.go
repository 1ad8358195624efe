package outbound

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
)

// TokenMetadataCache stores immutable ERC-20 metadata (symbol, decimals).
// Market data is never cached.
type TokenMetadataCache interface {
	// GetToken returns the cached asset and whether it was present.
	GetToken(ctx context.Context, chainID int64, address common.Address) (*entity.Asset, bool, error)

	// SetToken stores asset for chainID.
	SetToken(ctx context.Context, chainID int64, asset entity.Asset) error

	// Close closes the cache connection.
	Close() error
}
