package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

const codeMethodNotFound = -32601

type simCallArg struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Input hexutil.Bytes  `json:"input"`
	Value *hexutil.Big   `json:"value,omitempty"`
}

type simBlock struct {
	Calls []simCallArg `json:"calls"`
}

type simOptions struct {
	BlockStateCalls []simBlock `json:"blockStateCalls"`
	Validation      bool       `json:"validation"`
}

type simCallResult struct {
	ReturnData hexutil.Bytes  `json:"returnData"`
	GasUsed    hexutil.Uint64 `json:"gasUsed"`
	Status     hexutil.Uint64 `json:"status"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error,omitempty"`
}

type simBlockResult struct {
	Calls []simCallResult `json:"calls"`
}

// Simulate dry-runs calls in order on top of the latest block. It uses
// eth_simulateV1 so later calls see earlier state changes. Nodes without that
// method get one eth_call per call against head state instead, and the report
// says so.
func (c *Client) Simulate(ctx context.Context, calls []outbound.SimCall) (report *outbound.SimulationReport, err error) {
	start := time.Now()
	defer func() { c.record(ctx, "simulate", start, err) }()

	if len(calls) == 0 {
		return &outbound.SimulationReport{Mode: outbound.SimulationChained}, nil
	}

	if !c.simulateUnsupported.Load() {
		results, err := c.simulateChained(ctx, calls)
		if err == nil {
			return &outbound.SimulationReport{Mode: outbound.SimulationChained, Results: results}, nil
		}
		if !isUnsupportedMethod(err) {
			return nil, fmt.Errorf("eth_simulateV1: %w", err)
		}
		c.simulateUnsupported.Store(true)
		c.logger.Warn("node does not support eth_simulateV1, simulating calls in isolation", "error", err)
	}

	results, err := c.simulateIsolated(ctx, calls)
	if err != nil {
		return nil, err
	}
	return &outbound.SimulationReport{Mode: outbound.SimulationIsolated, Results: results}, nil
}

func (c *Client) simulateChained(ctx context.Context, calls []outbound.SimCall) ([]outbound.SimResult, error) {
	args := make([]simCallArg, len(calls))
	for i, call := range calls {
		args[i] = simCallArg{From: call.From, To: call.To, Input: call.Data}
		if call.Value != nil && call.Value.Sign() > 0 {
			args[i].Value = (*hexutil.Big)(call.Value)
		}
	}

	opts := simOptions{BlockStateCalls: []simBlock{{Calls: args}}}
	var blocks []simBlockResult
	if err := c.rpc.CallContext(ctx, &blocks, "eth_simulateV1", opts, "latest"); err != nil {
		return nil, err
	}
	if len(blocks) != 1 {
		return nil, fmt.Errorf("expected 1 simulated block, got %d", len(blocks))
	}
	if len(blocks[0].Calls) != len(calls) {
		return nil, fmt.Errorf("expected %d call results, got %d", len(calls), len(blocks[0].Calls))
	}

	results := make([]outbound.SimResult, len(calls))
	for i, r := range blocks[0].Calls {
		results[i] = outbound.SimResult{
			ReturnData: r.ReturnData,
			GasUsed:    uint64(r.GasUsed),
			Reverted:   r.Status == 0,
		}
		if results[i].Reverted {
			results[i].RevertReason = simErrorReason(r)
		}
	}
	return results, nil
}

func simErrorReason(r simCallResult) string {
	if reason := blockchain.DecodeRevert(r.ReturnData); reason != "" {
		return reason
	}
	if r.Error == nil {
		return "execution reverted"
	}
	if r.Error.Data != "" {
		if data, err := hexutil.Decode(r.Error.Data); err == nil {
			if reason := blockchain.DecodeRevert(data); reason != "" {
				return reason
			}
		}
	}
	return r.Error.Message
}

func (c *Client) simulateIsolated(ctx context.Context, calls []outbound.SimCall) ([]outbound.SimResult, error) {
	results := make([]outbound.SimResult, len(calls))
	for i, call := range calls {
		to := call.To
		out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
			From:  call.From,
			To:    &to,
			Data:  call.Data,
			Value: call.Value,
		}, nil)
		if err != nil {
			if !isRevert(err) {
				return nil, fmt.Errorf("eth_call for call %d: %w", i, err)
			}
			results[i] = outbound.SimResult{Reverted: true, RevertReason: blockchain.RevertReason(err)}
			continue
		}
		results[i] = outbound.SimResult{ReturnData: out}
	}
	return results, nil
}

func isUnsupportedMethod(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodNotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "method not found")
}

func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}
