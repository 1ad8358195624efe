package entity

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PlanKind is the vault operation a plan performs.
type PlanKind string

const (
	PlanKindDeposit  PlanKind = "deposit"
	PlanKindWithdraw PlanKind = "withdraw"
)

// ApprovalPolicy selects how large an approval is when one is needed.
type ApprovalPolicy int

const (
	// ApproveExact approves exactly the deposit amount.
	ApproveExact ApprovalPolicy = iota
	// ApproveMax approves 2^256-1 so later deposits skip the approval step.
	ApproveMax
)

func (p ApprovalPolicy) String() string {
	switch p {
	case ApproveExact:
		return "exact"
	case ApproveMax:
		return "max"
	default:
		return fmt.Sprintf("ApprovalPolicy(%d)", int(p))
	}
}

// ParseApprovalPolicy parses "exact" or "max".
func ParseApprovalPolicy(s string) (ApprovalPolicy, error) {
	switch s {
	case "", "exact":
		return ApproveExact, nil
	case "max":
		return ApproveMax, nil
	default:
		return 0, fmt.Errorf("unknown approval policy %q", s)
	}
}

// CallDescriptor is one contract call of a plan.
type CallDescriptor struct {
	Target   common.Address
	Function string // e.g. "approve", "deposit"
	Args     []any
	Data     []byte // ABI-encoded calldata
	// SimulatedReturn is the raw return data of the dry run.
	SimulatedReturn []byte
	// Decoded is the first decoded return value of the dry run, if any.
	Decoded any
}

// VaultTransactionPlan is an ordered, pre-simulated list of calls. When the
// allowance does not cover Amount, an approve call precedes the deposit.
type VaultTransactionPlan struct {
	Kind    PlanKind
	ChainID int64
	Vault   common.Address
	Asset   Asset
	Owner   common.Address
	// Amount in asset base units.
	Amount *big.Int
	// ExpectedShares from previewDeposit, nil when the vault does not answer.
	ExpectedShares *big.Int
	Calls          []CallDescriptor
}

// ExecutionResult holds the transaction hashes of a fully executed plan.
type ExecutionResult struct {
	Hashes   []common.Hash
	Receipts []*types.Receipt
}

// PlanStepEvent is published after each executed plan step.
type PlanStepEvent struct {
	ChainID     int64     `json:"chainId"`
	Kind        PlanKind  `json:"kind"`
	Vault       string    `json:"vault"`
	StepIndex   int       `json:"stepIndex"`
	Function    string    `json:"function"`
	TxHash      string    `json:"txHash"`
	BlockNumber uint64    `json:"blockNumber"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// DepositRequest asks for a deposit of Amount (human units) of the vault's
// asset from Owner, crediting shares to Receiver.
type DepositRequest struct {
	ChainID        int64
	VaultReference string
	Amount         string
	Owner          common.Address
	Receiver       common.Address // zero means Owner
	ApprovalPolicy ApprovalPolicy
}

// WithdrawRequest asks for a withdrawal of Amount (human units) of the
// vault's asset from Owner's shares, sent to Receiver.
type WithdrawRequest struct {
	ChainID        int64
	VaultReference string
	Amount         string
	Owner          common.Address
	Receiver       common.Address // zero means Owner
}
