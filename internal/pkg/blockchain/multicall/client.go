// Package multicall batches contract reads through the Multicall3 contract.
package multicall

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Client implements outbound.Multicaller with aggregate3.
type Client struct {
	reader  outbound.ChainReader
	address common.Address
	abi     *abi.ABI
}

var _ outbound.Multicaller = (*Client)(nil)

func NewClient(reader outbound.ChainReader, multicall3Address common.Address) (*Client, error) {
	multicallABI, err := abis.GetMulticall3ABI()
	if err != nil {
		return nil, fmt.Errorf("failed to load multicall3 ABI: %w", err)
	}

	return &Client{
		reader:  reader,
		address: multicall3Address,
		abi:     multicallABI,
	}, nil
}

func (c *Client) Address() common.Address {
	return c.address
}

// Execute runs calls in one eth_call. Calls with AllowFailure set report
// failure through Result.Success; any other failing call reverts the batch.
func (c *Client) Execute(ctx context.Context, calls []outbound.Call, blockNumber *big.Int) ([]outbound.Result, error) {
	if len(calls) == 0 {
		return []outbound.Result{}, nil
	}

	data, err := c.abi.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack multicall: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	}

	result, err := c.reader.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to call multicall contract at address=%s block=%s calls=%d: %w",
			c.address.Hex(), blockNumberString(blockNumber), len(calls), err)
	}

	unpacked, err := c.abi.Unpack("aggregate3", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack multicall response at block=%s: %w",
			blockNumberString(blockNumber), err)
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("empty multicall response at block=%s", blockNumberString(blockNumber))
	}

	resultsRaw, ok := unpacked[0].([]struct {
		Success    bool   `json:"success"`
		ReturnData []byte `json:"returnData"`
	})
	if !ok {
		return nil, fmt.Errorf("unexpected multicall response type %T", unpacked[0])
	}
	if len(resultsRaw) != len(calls) {
		return nil, fmt.Errorf("multicall returned %d results for %d calls", len(resultsRaw), len(calls))
	}

	results := make([]outbound.Result, len(resultsRaw))
	for i, r := range resultsRaw {
		results[i] = outbound.Result{
			Success:    r.Success,
			ReturnData: r.ReturnData,
		}
	}

	return results, nil
}

func blockNumberString(blockNumber *big.Int) string {
	if blockNumber == nil {
		return "latest"
	}
	return blockNumber.String()
}
