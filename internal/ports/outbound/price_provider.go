package outbound

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
)

// ErrNoPairFound is returned when a source has no market for the token.
var ErrNoPairFound = errors.New("no pair found")

// TokenPriceProvider is any source of spot USD token prices.
type TokenPriceProvider interface {
	// Name returns the provider name (e.g., "dexscreener").
	Name() string

	// GetTokenPrice returns the spot price of token on chainID, or
	// ErrNoPairFound when the source does not list it.
	GetTokenPrice(ctx context.Context, chainID int64, token common.Address) (*entity.TokenPrice, error)
}
