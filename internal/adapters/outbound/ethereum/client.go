// Package ethereum is the go-ethereum backed chain adapter. It reads contract
// state, simulates planned calls, and signs, sends and confirms transactions.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/retry"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Compile-time checks.
var (
	_ outbound.ChainReader = (*Client)(nil)
	_ outbound.Simulator   = (*Client)(nil)
	_ outbound.TxSubmitter = (*Client)(nil)
)

// Config holds configuration for the chain client.
type Config struct {
	// RPCURL is the JSON-RPC endpoint of the node.
	RPCURL string

	// ChainID is the expected chain. Dial fails when the node reports another.
	ChainID int64

	// GasLimitMultiplier pads gas estimates. Defaults to 1.2.
	GasLimitMultiplier float64

	// Logger is the structured logger for the client.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics outbound.MetricsRecorder
}

// ConfigDefaults returns a config with default values.
func ConfigDefaults() Config {
	return Config{
		GasLimitMultiplier: 1.2,
		Logger:             slog.Default(),
	}
}

// Client talks to one EVM chain over JSON-RPC.
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	chainID *big.Int
	gasMul  float64
	logger  *slog.Logger
	metrics outbound.MetricsRecorder

	// simulateUnsupported latches once the node rejects eth_simulateV1.
	simulateUnsupported atomic.Bool
}

// Dial connects to cfg.RPCURL and checks the node's chain id.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("RPC URL is required")
	}

	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to node: %w", err)
	}

	c := NewClient(rpcClient, cfg)
	remoteID, err := c.eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("reading chain id: %w", err)
	}
	if cfg.ChainID != 0 && remoteID.Int64() != cfg.ChainID {
		rpcClient.Close()
		return nil, fmt.Errorf("node is on chain %s, expected %d", remoteID, cfg.ChainID)
	}
	c.chainID = remoteID
	return c, nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rpcClient *rpc.Client, cfg Config) *Client {
	defaults := ConfigDefaults()
	if cfg.GasLimitMultiplier <= 0 {
		cfg.GasLimitMultiplier = defaults.GasLimitMultiplier
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}

	return &Client{
		rpc:     rpcClient,
		eth:     ethclient.NewClient(rpcClient),
		chainID: big.NewInt(cfg.ChainID),
		gasMul:  cfg.GasLimitMultiplier,
		logger:  cfg.Logger.With("component", "ethereum-client"),
		metrics: cfg.Metrics,
	}
}

// ChainID returns the chain the client is connected to.
func (c *Client) ChainID() int64 {
	return c.chainID.Int64()
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// CallContract executes a read-only call.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) (out []byte, err error) {
	start := time.Now()
	defer func() { c.record(ctx, "eth_call", start, err) }()
	return c.eth.CallContract(ctx, call, blockNumber)
}

// SignTx builds an EIP-1559 transaction calling `to` and signs it with opts.
// Nonce, gas limit and fees are filled from the node unless opts sets them.
// Gas estimation failures mean the call would revert and are marked
// non-retryable.
func (c *Client) SignTx(ctx context.Context, opts *bind.TransactOpts, to common.Address, data []byte) (*types.Transaction, error) {
	if opts == nil || opts.Signer == nil {
		return nil, retry.NonRetryable(errors.New("transact opts with a signer are required"))
	}

	value := opts.Value
	if value == nil {
		value = new(big.Int)
	}

	var nonce uint64
	if opts.Nonce != nil {
		nonce = opts.Nonce.Uint64()
	} else {
		var err error
		nonce, err = c.eth.PendingNonceAt(ctx, opts.From)
		if err != nil {
			return nil, fmt.Errorf("reading nonce of %s: %w", opts.From.Hex(), err)
		}
	}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		estimate, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: opts.From, To: &to, Value: value, Data: data})
		if err != nil {
			return nil, retry.NonRetryable(fmt.Errorf("estimating gas: %s: %w", blockchain.RevertReason(err), err))
		}
		gasLimit = uint64(float64(estimate) * c.gasMul)
	}

	tip := opts.GasTipCap
	if tip == nil {
		var err error
		tip, err = c.eth.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggesting tip: %w", err)
		}
	}

	feeCap := opts.GasFeeCap
	if feeCap == nil {
		head, err := c.eth.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("reading head: %w", err)
		}
		baseFee := head.BaseFee
		if baseFee == nil {
			baseFee = new(big.Int)
		}
		feeCap = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := opts.Signer(opts.From, tx)
	if err != nil {
		return nil, retry.NonRetryable(fmt.Errorf("signing transaction: %w", err))
	}
	return signed, nil
}

// SendTx broadcasts tx. A node that already holds tx answers "already known",
// or "nonce too low" once it is mined; both count as sent.
func (c *Client) SendTx(ctx context.Context, tx *types.Transaction) (err error) {
	start := time.Now()
	defer func() { c.record(ctx, "send_transaction", start, err) }()

	log := c.logger.With("hash", tx.Hash().Hex(), "nonce", tx.Nonce())

	sendErr := c.eth.SendTransaction(ctx, tx)
	if sendErr == nil {
		log.Info("transaction sent", "gas", tx.Gas())
		return nil
	}

	msg := strings.ToLower(sendErr.Error())
	switch {
	case strings.Contains(msg, "already known"), strings.Contains(msg, "already imported"):
		log.Info("transaction already known to the node")
		return nil
	case strings.Contains(msg, "nonce too low"):
		if _, _, lookupErr := c.eth.TransactionByHash(ctx, tx.Hash()); lookupErr == nil {
			log.Info("transaction already accepted by the node")
			return nil
		}
	}
	return fmt.Errorf("sending transaction %s: %w", tx.Hash().Hex(), sendErr)
}

// WaitMined polls for the receipt of hash every pollInterval until timeout.
// A failed receipt is returned together with outbound.ErrTransactionReverted.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash, pollInterval, timeout time.Duration) (*types.Receipt, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w: %s in block %s", outbound.ErrTransactionReverted, hash.Hex(), receipt.BlockNumber)
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
		default:
			c.logger.Warn("receipt lookup failed, polling again", "hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) record(ctx context.Context, op string, start time.Time, err error) {
	if c.metrics != nil {
		c.metrics.RecordRemoteCall(ctx, "ethereum", op, time.Since(start), err)
	}
}
