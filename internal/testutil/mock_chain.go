package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// SubmittedTx records one broadcast on MockChain.
type SubmittedTx struct {
	To    common.Address
	Data  []byte
	Nonce uint64
	Hash  common.Hash
}

// MockChain implements outbound.Simulator and outbound.TxSubmitter. SignTx
// hands out nonces from 0 in call order; SendTx records every broadcast,
// including resends of the same transaction.
type MockChain struct {
	mu sync.Mutex

	SimulateFn  func(ctx context.Context, calls []outbound.SimCall) (*outbound.SimulationReport, error)
	SignFn      func(ctx context.Context, opts *bind.TransactOpts, to common.Address, data []byte) error
	SendFn      func(ctx context.Context, tx *types.Transaction) error
	WaitMinedFn func(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CallFn      func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	Simulated [][]outbound.SimCall
	Signed    []*types.Transaction
	Submitted []SubmittedTx
	Waited    []common.Hash
	Replayed  []ethereum.CallMsg
}

var (
	_ outbound.Simulator   = (*MockChain)(nil)
	_ outbound.TxSubmitter = (*MockChain)(nil)
)

// NewMockChain returns a chain on which every simulation succeeds and every
// transaction is mined successfully in block 100.
func NewMockChain() *MockChain {
	return &MockChain{}
}

func (m *MockChain) Simulate(ctx context.Context, calls []outbound.SimCall) (*outbound.SimulationReport, error) {
	m.mu.Lock()
	m.Simulated = append(m.Simulated, calls)
	fn := m.SimulateFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, calls)
	}
	results := make([]outbound.SimResult, len(calls))
	for i := range results {
		results[i] = outbound.SimResult{ReturnData: common.LeftPadBytes([]byte{1}, 32), GasUsed: 50_000}
	}
	return &outbound.SimulationReport{Mode: outbound.SimulationChained, Results: results}, nil
}

func (m *MockChain) SignTx(ctx context.Context, opts *bind.TransactOpts, to common.Address, data []byte) (*types.Transaction, error) {
	if opts == nil {
		return nil, errors.New("no signer")
	}

	m.mu.Lock()
	fn := m.SignFn
	nonce := uint64(len(m.Signed))
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, opts, to, data); err != nil {
			return nil, err
		}
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID: big.NewInt(1),
		Nonce:   nonce,
		Gas:     100_000,
		To:      &to,
		Value:   new(big.Int),
		Data:    data,
	})
	if opts.Signer != nil {
		signed, err := opts.Signer(opts.From, tx)
		if err != nil {
			return nil, err
		}
		tx = signed
	}

	m.mu.Lock()
	m.Signed = append(m.Signed, tx)
	m.mu.Unlock()
	return tx, nil
}

func (m *MockChain) SendTx(ctx context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	m.Submitted = append(m.Submitted, SubmittedTx{To: *tx.To(), Data: tx.Data(), Nonce: tx.Nonce(), Hash: tx.Hash()})
	fn := m.SendFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, tx)
	}
	return nil
}

func (m *MockChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.mu.Lock()
	m.Replayed = append(m.Replayed, call)
	fn := m.CallFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, call, blockNumber)
	}
	return nil, nil
}

func (m *MockChain) WaitMined(ctx context.Context, hash common.Hash, _, _ time.Duration) (*types.Receipt, error) {
	m.mu.Lock()
	m.Waited = append(m.Waited, hash)
	fn := m.WaitMinedFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, hash)
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(100)}, nil
}

// RevertedReceipt returns a failed receipt together with the error WaitMined
// reports for it.
func RevertedReceipt(hash common.Hash) (*types.Receipt, error) {
	receipt := &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash, BlockNumber: big.NewInt(100)}
	return receipt, fmt.Errorf("%w: %s", outbound.ErrTransactionReverted, hash.Hex())
}
