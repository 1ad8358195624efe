package entity

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestErrors_MatchSentinels(t *testing.T) {
	cause := errors.New("execution reverted")
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"resolution", &ResolutionError{Kind: ErrMarketNotFound, Reference: "A/B", ChainID: 1}, ErrMarketNotFound},
		{"remote index", &RemoteIndexError{Query: "markets", Messages: []string{"boom"}}, ErrRemoteIndex},
		{"on-chain read", &OnChainReadError{Target: common.HexToAddress("0x01"), Function: "decimals", Err: cause}, ErrOnChainRead},
		{"simulation", &SimulationFailedError{Index: 1, Function: "deposit", Reason: "ERC20: insufficient allowance", Err: cause}, ErrSimulationFailed},
		{"execution", &ExecutionFailedError{Index: 0, Function: "approve", Err: cause}, ErrExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
		})
	}
}

func TestErrors_CarryContext(t *testing.T) {
	err := &ResolutionError{Kind: ErrMarketNotFound, Reference: "FOO/BAR", ChainID: 8453}
	if !strings.Contains(err.Error(), "8453") || !strings.Contains(err.Error(), "FOO/BAR") {
		t.Errorf("Error() = %q, want chain id and reference", err.Error())
	}

	cause := errors.New("reverted")
	exec := &ExecutionFailedError{Index: 1, Function: "deposit", Hash: common.HexToHash("0xabc"), Err: cause}
	if !errors.Is(exec, cause) {
		t.Error("ExecutionFailedError should unwrap to its cause")
	}
	var target *ExecutionFailedError
	if !errors.As(fmt.Errorf("wrap: %w", exec), &target) || target.Index != 1 {
		t.Errorf("errors.As failed or wrong index: %+v", target)
	}

	sim := &SimulationFailedError{Index: 0, Function: "withdraw", Reason: "ERC4626: withdraw more than max"}
	if !strings.Contains(sim.Error(), "withdraw more than max") {
		t.Errorf("Error() = %q, want revert reason", sim.Error())
	}
}

func TestParseApprovalPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ApprovalPolicy
		wantErr bool
	}{
		{"", ApproveExact, false},
		{"exact", ApproveExact, false},
		{"max", ApproveMax, false},
		{"infinite", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseApprovalPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseApprovalPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseApprovalPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
