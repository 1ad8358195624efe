package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidReference is returned for malformed market or vault references.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrMarketNotFound is returned when no market matches a reference.
	ErrMarketNotFound = errors.New("market not found")
	// ErrVaultNotFound is returned when no vault matches a reference.
	ErrVaultNotFound = errors.New("vault not found")
	// ErrRemoteIndex is returned when the index answers with errors.
	ErrRemoteIndex = errors.New("remote index error")
	// ErrOnChainRead is returned when a contract read fails.
	ErrOnChainRead = errors.New("on-chain read failed")
	// ErrPriceUnavailable marks a missing price. It never escapes a position
	// build; the affected USD fields are left nil instead.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrSimulationFailed is returned when a planned call would revert.
	ErrSimulationFailed = errors.New("simulation failed")
	// ErrExecutionFailed is returned when a submitted call fails or times out.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrInvalidAmount is returned for amounts that cannot be represented.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrChainNotServed is returned for a chain other than the configured one.
	ErrChainNotServed = errors.New("chain not served")
	// ErrNoDecimals marks a token whose decimals() call reverted or returned
	// something that is not a uint8. A failed read of the call is not this.
	ErrNoDecimals = errors.New("token does not report decimals")
)

// ResolutionError reports a failed market or vault resolution.
// Kind is one of ErrInvalidReference, ErrMarketNotFound or ErrVaultNotFound.
type ResolutionError struct {
	Kind      error
	Reference string
	ChainID   int64
	Detail    string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%v: %q", e.Kind, e.Reference)
	if e.ChainID != 0 {
		msg += fmt.Sprintf(" on chain %d", e.ChainID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Kind }

// RemoteIndexError carries the error messages returned by the index.
type RemoteIndexError struct {
	Query    string
	Messages []string
}

func (e *RemoteIndexError) Error() string {
	return fmt.Sprintf("remote index error in %s: %s", e.Query, strings.Join(e.Messages, "; "))
}

func (e *RemoteIndexError) Unwrap() error { return ErrRemoteIndex }

// OnChainReadError reports a failed contract read.
type OnChainReadError struct {
	Target   common.Address
	Function string
	Err      error
}

func (e *OnChainReadError) Error() string {
	return fmt.Sprintf("reading %s on %s: %v", e.Function, e.Target.Hex(), e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *OnChainReadError) Unwrap() []error { return []error{ErrOnChainRead, e.Err} }

// SimulationFailedError reports the plan step that would revert.
type SimulationFailedError struct {
	Index    int
	Function string
	Reason   string
	Err      error
}

func (e *SimulationFailedError) Error() string {
	msg := fmt.Sprintf("simulating step %d (%s) failed", e.Index, e.Function)
	if e.Reason != "" {
		msg += ": " + e.Reason
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SimulationFailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSimulationFailed}
	}
	return []error{ErrSimulationFailed, e.Err}
}

// ExecutionFailedError reports the plan step at which execution stopped.
// Hash is zero when signing failed; once a transaction is signed it is set
// even if the broadcast failed, since the node may still hold it.
type ExecutionFailedError struct {
	Index    int
	Function string
	Hash     common.Hash
	Err      error
}

func (e *ExecutionFailedError) Error() string {
	if e.Hash == (common.Hash{}) {
		return fmt.Sprintf("executing step %d (%s): %v", e.Index, e.Function, e.Err)
	}
	return fmt.Sprintf("executing step %d (%s) tx %s: %v", e.Index, e.Function, e.Hash.Hex(), e.Err)
}

func (e *ExecutionFailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExecutionFailed}
	}
	return []error{ErrExecutionFailed, e.Err}
}
