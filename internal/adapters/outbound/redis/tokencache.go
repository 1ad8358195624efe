// Package redis provides a Redis implementation of the TokenMetadataCache port.
//
// Token symbol and decimals are stored as JSON under
// prefix:token:chainID:address with a long TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Compile-time check that TokenCache implements outbound.TokenMetadataCache
var _ outbound.TokenMetadataCache = (*TokenCache)(nil)

// Config holds Redis cache configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string
	// Password for Redis authentication (empty for no auth)
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// TTL is how long cached data lives before expiring
	TTL time.Duration
	// KeyPrefix is prepended to all cache keys
	KeyPrefix string
}

// ConfigDefaults returns sensible defaults for Redis cache configuration.
func ConfigDefaults() Config {
	return Config{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		TTL:       7 * 24 * time.Hour,
		KeyPrefix: "morpho",
	}
}

type cachedToken struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// TokenCache is a Redis implementation of the outbound.TokenMetadataCache port.
type TokenCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

// NewTokenCache creates a new Redis token cache.
func NewTokenCache(cfg Config, logger *slog.Logger) (*TokenCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "redis-token-cache")

	return &TokenCache{
		client:    client,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}, nil
}

// Ping checks the Redis connection.
func (c *TokenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *TokenCache) Close() error {
	return c.client.Close()
}

// key generates a cache key in the format prefix:token:chainID:address
func (c *TokenCache) key(chainID int64, address common.Address) string {
	return fmt.Sprintf("%s:token:%d:%s", c.keyPrefix, chainID, strings.ToLower(address.Hex()))
}

// GetToken retrieves a cached token. A missing key is not an error.
func (c *TokenCache) GetToken(ctx context.Context, chainID int64, address common.Address) (*entity.Asset, bool, error) {
	data, err := c.client.Get(ctx, c.key(chainID, address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get token: %w", err)
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("dropping malformed cache entry", "key", c.key(chainID, address), "error", err)
		return nil, false, nil
	}
	return &entity.Asset{Address: address, Symbol: cached.Symbol, Decimals: cached.Decimals}, true, nil
}

// SetToken caches asset for chainID.
func (c *TokenCache) SetToken(ctx context.Context, chainID int64, asset entity.Asset) error {
	data, err := json.Marshal(cachedToken{Symbol: asset.Symbol, Decimals: asset.Decimals})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := c.client.Set(ctx, c.key(chainID, asset.Address), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	return nil
}
