// tokencache.go provides an in-memory implementation of TokenMetadataCache.
//
// Entries are keyed by chainID:address and never expire; token symbol and
// decimals do not change once deployed. Data is lost on process restart.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Compile-time check that TokenCache implements outbound.TokenMetadataCache
var _ outbound.TokenMetadataCache = (*TokenCache)(nil)

// TokenCache is an in-memory implementation of the TokenMetadataCache port.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[string]entity.Asset
	closed bool
}

// NewTokenCache creates an empty in-memory token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]entity.Asset),
	}
}

func (c *TokenCache) key(chainID int64, address common.Address) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(address.Hex()))
}

// GetToken returns the cached asset for address on chainID.
func (c *TokenCache) GetToken(ctx context.Context, chainID int64, address common.Address) (*entity.Asset, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	asset, ok := c.tokens[c.key(chainID, address)]
	if !ok {
		return nil, false, nil
	}
	return &asset, true, nil
}

// SetToken stores asset for chainID.
func (c *TokenCache) SetToken(ctx context.Context, chainID int64, asset entity.Asset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("token cache is closed")
	}
	c.tokens[c.key(chainID, asset.Address)] = asset
	return nil
}

// Close marks the cache as closed. Reads keep working.
func (c *TokenCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Len returns the number of cached tokens (for testing).
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}
