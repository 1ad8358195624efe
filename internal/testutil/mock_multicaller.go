package testutil

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// MockMulticaller implements outbound.Multicaller for testing. Set ExecuteFn
// for full control, or register canned return data per (target, selector)
// with Respond. Calls without a registered response fail.
type MockMulticaller struct {
	mu        sync.Mutex
	ExecuteFn func(ctx context.Context, calls []outbound.Call, blockNumber *big.Int) ([]outbound.Result, error)
	CallCount int
	Addr      common.Address

	responses map[string][]byte
	failures  map[string]error
	seen      map[string]int
}

func NewMockMulticaller() *MockMulticaller {
	return &MockMulticaller{
		Addr:      blockchain.Multicall3,
		responses: make(map[string][]byte),
		failures:  make(map[string]error),
		seen:      make(map[string]int),
	}
}

func routeKey(target common.Address, callData []byte) string {
	selector := callData
	if len(selector) > 4 {
		selector = selector[:4]
	}
	return strings.ToLower(target.Hex()) + ":" + hex.EncodeToString(selector)
}

// Respond makes calls to target whose calldata starts with the selector of
// callData answer with returnData.
func (m *MockMulticaller) Respond(target common.Address, callData []byte, returnData []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[routeKey(target, callData)] = returnData
}

// Fail makes every Execute batch containing a call to target with
// callData's selector fail as a whole with err, like a transport failure.
func (m *MockMulticaller) Fail(target common.Address, callData []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[routeKey(target, callData)] = err
}

// Seen returns how often a call with callData's selector reached target.
func (m *MockMulticaller) Seen(target common.Address, callData []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[routeKey(target, callData)]
}

func (m *MockMulticaller) Execute(ctx context.Context, calls []outbound.Call, blockNumber *big.Int) ([]outbound.Result, error) {
	m.mu.Lock()
	m.CallCount++
	fn := m.ExecuteFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, calls, blockNumber)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil, errors.New("Execute not mocked")
	}
	for _, call := range calls {
		if err, ok := m.failures[routeKey(call.Target, call.CallData)]; ok {
			return nil, err
		}
	}
	results := make([]outbound.Result, len(calls))
	for i, call := range calls {
		key := routeKey(call.Target, call.CallData)
		m.seen[key]++
		data, ok := m.responses[key]
		if !ok {
			if !call.AllowFailure {
				return nil, errors.New("execution reverted: unmocked call " + key)
			}
			continue
		}
		results[i] = outbound.Result{Success: true, ReturnData: data}
	}
	return results, nil
}

func (m *MockMulticaller) Address() common.Address {
	return m.Addr
}
