package testutil

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// MockPriceProvider answers from Prices and returns outbound.ErrNoPairFound
// for anything else. Err overrides both.
type MockPriceProvider struct {
	mu sync.Mutex

	ProviderName string
	Prices       map[common.Address]decimal.Decimal
	Err          error
	// Delay blocks every lookup until it elapses or the context ends.
	Delay <-chan struct{}

	calls int
}

var _ outbound.TokenPriceProvider = (*MockPriceProvider)(nil)

func NewMockPriceProvider(name string) *MockPriceProvider {
	return &MockPriceProvider{ProviderName: name, Prices: make(map[common.Address]decimal.Decimal)}
}

func (m *MockPriceProvider) Name() string {
	return m.ProviderName
}

// Calls returns the number of lookups made.
func (m *MockPriceProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockPriceProvider) GetTokenPrice(ctx context.Context, chainID int64, token common.Address) (*entity.TokenPrice, error) {
	m.mu.Lock()
	m.calls++
	price, ok := m.Prices[token]
	err := m.Err
	delay := m.Delay
	m.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, outbound.ErrNoPairFound
	}
	return &entity.TokenPrice{ChainID: chainID, Address: token, PriceUSD: price, Source: m.ProviderName}, nil
}
