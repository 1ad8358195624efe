package outbound

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrTransactionReverted is returned by WaitMined for a mined transaction
// whose receipt status is failed.
var ErrTransactionReverted = errors.New("transaction reverted")

// ChainReader reads contract state. The signature matches ethclient so the
// client satisfies it directly.
type ChainReader interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// SimCall is a write call to dry-run.
type SimCall struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// SimResult is the outcome of one simulated call.
type SimResult struct {
	ReturnData   []byte
	GasUsed      uint64
	Reverted     bool
	RevertReason string
}

// SimulationMode tells whether simulated calls saw each other's state changes.
type SimulationMode int

const (
	// SimulationChained means calls ran in order on one state, so a deposit
	// observes the approval before it.
	SimulationChained SimulationMode = iota
	// SimulationIsolated means every call ran against the current head state.
	SimulationIsolated
)

// SimulationReport holds one result per simulated call, in order.
type SimulationReport struct {
	Mode    SimulationMode
	Results []SimResult
}

// Simulator dry-runs write calls against the latest block.
type Simulator interface {
	Simulate(ctx context.Context, calls []SimCall) (*SimulationReport, error)
}

// TxSubmitter signs, sends and confirms transactions. It reads contract
// state as well, so a mined revert can be replayed for its reason.
type TxSubmitter interface {
	ChainReader

	// SignTx fills nonce, gas and fees for a call to `to` and signs it with
	// opts. Nothing is broadcast.
	SignTx(ctx context.Context, opts *bind.TransactOpts, to common.Address, data []byte) (*types.Transaction, error)
	// SendTx broadcasts a signed transaction. Sending a transaction the node
	// already holds succeeds, so the same tx can be resent after an
	// ambiguous failure.
	SendTx(ctx context.Context, tx *types.Transaction) error
	// WaitMined polls for the receipt of hash every pollInterval until timeout.
	WaitMined(ctx context.Context, hash common.Hash, pollInterval, timeout time.Duration) (*types.Receipt, error)
}
