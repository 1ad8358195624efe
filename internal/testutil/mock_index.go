package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// MockIndex is an in-memory outbound.MarketIndex. Err, when set, is returned
// by every method.
type MockIndex struct {
	mu sync.Mutex

	Markets       []entity.MarketListing
	Summaries     map[entity.MarketID]*entity.MarketSummary
	Vaults        []entity.VaultData
	UserMarkets   map[common.Address][]entity.MarketID
	AssetDecimals map[common.Address]int
	Err           error

	calls map[string]int
}

var _ outbound.MarketIndex = (*MockIndex)(nil)

func NewMockIndex() *MockIndex {
	return &MockIndex{
		Summaries:     make(map[entity.MarketID]*entity.MarketSummary),
		UserMarkets:   make(map[common.Address][]entity.MarketID),
		AssetDecimals: make(map[common.Address]int),
		calls:         make(map[string]int),
	}
}

// Calls returns how often method was called.
func (m *MockIndex) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockIndex) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.Err
}

func (m *MockIndex) ListMarkets(_ context.Context, _ int64) ([]entity.MarketListing, error) {
	if err := m.record("ListMarkets"); err != nil {
		return nil, err
	}
	return m.Markets, nil
}

func (m *MockIndex) GetMarket(_ context.Context, id entity.MarketID, chainID int64) (*entity.MarketSummary, error) {
	if err := m.record("GetMarket"); err != nil {
		return nil, err
	}
	for key, summary := range m.Summaries {
		if key.Equal(id) {
			return summary, nil
		}
	}
	return nil, &entity.ResolutionError{Kind: entity.ErrMarketNotFound, Reference: id.String(), ChainID: chainID}
}

func (m *MockIndex) ListVaults(_ context.Context, _ int64) ([]entity.VaultListing, error) {
	if err := m.record("ListVaults"); err != nil {
		return nil, err
	}
	out := make([]entity.VaultListing, len(m.Vaults))
	for i, v := range m.Vaults {
		out[i] = entity.VaultListing{Address: v.Address, Name: v.Name, Symbol: v.Symbol, ChainID: v.ChainID}
	}
	return out, nil
}

func (m *MockIndex) ListVaultData(_ context.Context, _ int64) ([]entity.VaultData, error) {
	if err := m.record("ListVaultData"); err != nil {
		return nil, err
	}
	return m.Vaults, nil
}

func (m *MockIndex) GetVault(_ context.Context, address common.Address, chainID int64) (*entity.VaultData, error) {
	if err := m.record("GetVault"); err != nil {
		return nil, err
	}
	for i := range m.Vaults {
		if m.Vaults[i].Address == address {
			return &m.Vaults[i], nil
		}
	}
	return nil, &entity.ResolutionError{Kind: entity.ErrVaultNotFound, Reference: address.Hex(), ChainID: chainID}
}

func (m *MockIndex) GetUserMarketIDs(_ context.Context, user common.Address, _ int64) ([]entity.MarketID, error) {
	if err := m.record("GetUserMarketIDs"); err != nil {
		return nil, err
	}
	return m.UserMarkets[user], nil
}

func (m *MockIndex) GetVaultAssetDecimals(_ context.Context, vault common.Address, _ int64) (int, error) {
	if err := m.record("GetVaultAssetDecimals"); err != nil {
		return 0, err
	}
	decimals, ok := m.AssetDecimals[vault]
	if !ok {
		return 0, fmt.Errorf("vault %s not indexed", strings.ToLower(vault.Hex()))
	}
	return decimals, nil
}
