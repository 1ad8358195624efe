// Package vault_tx builds, simulates and executes MetaMorpho (ERC-4626)
// deposit and withdraw plans.
package vault_tx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/retry"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/units"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// defaultAssetDecimals is assumed when the asset does not answer decimals().
const defaultAssetDecimals = 18

// VaultResolver maps a vault reference to its address.
type VaultResolver interface {
	ResolveVault(ctx context.Context, reference string, chainID int64) (common.Address, error)
}

// TokenReader reads ERC-20 metadata from chain.
type TokenReader interface {
	GetToken(ctx context.Context, chainID int64, token common.Address) (entity.Asset, error)
}

// ServiceConfig holds configuration for the vault transaction service.
type ServiceConfig struct {
	ChainID int64

	// PollInterval is how often a receipt is polled for.
	PollInterval time.Duration

	// ReceiptTimeout bounds the wait for one transaction to be mined.
	ReceiptTimeout time.Duration

	// SubmitPolicy is applied to signing and, separately, to broadcasting
	// the signed transaction.
	SubmitPolicy retry.Policy

	Logger *slog.Logger

	// Metrics and EventSink are optional.
	Metrics   outbound.MetricsRecorder
	EventSink outbound.EventSink
}

// ServiceConfigDefaults returns the default configuration.
func ServiceConfigDefaults() ServiceConfig {
	return ServiceConfig{
		PollInterval:   2 * time.Second,
		ReceiptTimeout: 3 * time.Minute,
		SubmitPolicy: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			BackoffFactor:  2.0,
			Jitter:         true,
			Retryable:      submitRetryable,
		},
		Logger: slog.Default(),
	}
}

// submitRetryable rejects node answers that resending the same signed
// transaction cannot change. Duplicates the node already holds are reported
// as sent by the submitter and never reach here.
func submitRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"already known", "nonce too low", "replacement transaction underpriced", "insufficient funds"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}

// Service builds and executes vault plans on a single chain.
type Service struct {
	chainID     int64
	resolver    VaultResolver
	multicaller outbound.Multicaller
	index       outbound.MarketIndex
	tokens      TokenReader
	simulator   outbound.Simulator
	submitter   outbound.TxSubmitter

	erc20   *abi.ABI
	erc4626 *abi.ABI

	pollInterval   time.Duration
	receiptTimeout time.Duration
	submitPolicy   retry.Policy
	logger         *slog.Logger
	metrics        outbound.MetricsRecorder
	events         outbound.EventSink
}

// NewService creates a vault transaction service. submitter may be nil for a
// read-only deployment; ExecutePlan then fails.
func NewService(
	config ServiceConfig,
	resolver VaultResolver,
	multicaller outbound.Multicaller,
	index outbound.MarketIndex,
	tokens TokenReader,
	simulator outbound.Simulator,
	submitter outbound.TxSubmitter,
) (*Service, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if multicaller == nil {
		return nil, fmt.Errorf("multicaller cannot be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token reader cannot be nil")
	}
	if simulator == nil {
		return nil, fmt.Errorf("simulator cannot be nil")
	}
	if config.ChainID <= 0 {
		return nil, fmt.Errorf("chainID must be positive, got %d", config.ChainID)
	}

	defaults := ServiceConfigDefaults()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ReceiptTimeout <= 0 {
		config.ReceiptTimeout = defaults.ReceiptTimeout
	}
	if config.SubmitPolicy.MaxAttempts <= 0 {
		config.SubmitPolicy = defaults.SubmitPolicy
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	erc20, err := abis.GetERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("loading ERC20 ABI: %w", err)
	}
	erc4626, err := abis.GetERC4626ABI()
	if err != nil {
		return nil, fmt.Errorf("loading ERC4626 ABI: %w", err)
	}

	return &Service{
		chainID:        config.ChainID,
		resolver:       resolver,
		multicaller:    multicaller,
		index:          index,
		tokens:         tokens,
		simulator:      simulator,
		submitter:      submitter,
		erc20:          erc20,
		erc4626:        erc4626,
		pollInterval:   config.PollInterval,
		receiptTimeout: config.ReceiptTimeout,
		submitPolicy:   config.SubmitPolicy,
		logger:         config.Logger.With("component", "vault-tx", "chainId", config.ChainID),
		metrics:        config.Metrics,
		events:         config.EventSink,
	}, nil
}

func (s *Service) checkChain(chainID int64) error {
	if chainID != 0 && chainID != s.chainID {
		return fmt.Errorf("%w: %d (configured %d)", entity.ErrChainNotServed, chainID, s.chainID)
	}
	return nil
}

// BuildDepositPlan builds and simulates a deposit of req.Amount into the
// vault. An approve call is prepended when the owner's allowance does not
// cover the amount.
func (s *Service) BuildDepositPlan(ctx context.Context, req entity.DepositRequest) (*entity.VaultTransactionPlan, error) {
	if err := s.checkChain(req.ChainID); err != nil {
		return nil, err
	}
	if req.Owner == (common.Address{}) {
		return nil, fmt.Errorf("owner address is required")
	}
	receiver := req.Receiver
	if receiver == (common.Address{}) {
		receiver = req.Owner
	}

	vault, err := s.resolver.ResolveVault(ctx, req.VaultReference, s.chainID)
	if err != nil {
		return nil, err
	}

	info, err := s.readVault(ctx, vault)
	if err != nil {
		return nil, err
	}
	asset, err := s.assetFromChain(ctx, info.asset)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(req.Amount, asset.Decimals)
	if err != nil {
		return nil, err
	}

	allowance, expectedShares, err := s.readDepositState(ctx, vault, asset.Address, req.Owner, amount)
	if err != nil {
		return nil, err
	}

	plan := &entity.VaultTransactionPlan{
		Kind:           entity.PlanKindDeposit,
		ChainID:        s.chainID,
		Vault:          vault,
		Asset:          asset,
		Owner:          req.Owner,
		Amount:         amount,
		ExpectedShares: expectedShares,
	}

	if allowance.Cmp(amount) < 0 {
		approveAmount := amount
		if req.ApprovalPolicy == entity.ApproveMax {
			approveAmount = new(big.Int).Set(math.MaxBig256)
		}
		call, err := s.describe(s.erc20, asset.Address, "approve", vault, approveAmount)
		if err != nil {
			return nil, err
		}
		plan.Calls = append(plan.Calls, call)
	}

	deposit, err := s.describe(s.erc4626, vault, "deposit", amount, receiver)
	if err != nil {
		return nil, err
	}
	plan.Calls = append(plan.Calls, deposit)

	if err := s.simulate(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("deposit plan built",
		"vault", vault.Hex(),
		"asset", asset.Symbol,
		"amount", units.Format(amount, asset.Decimals),
		"calls", len(plan.Calls),
		"approval", req.ApprovalPolicy.String())
	return plan, nil
}

// BuildWithdrawPlan builds and simulates a withdrawal of req.Amount assets
// from the owner's vault shares.
func (s *Service) BuildWithdrawPlan(ctx context.Context, req entity.WithdrawRequest) (*entity.VaultTransactionPlan, error) {
	if err := s.checkChain(req.ChainID); err != nil {
		return nil, err
	}
	if req.Owner == (common.Address{}) {
		return nil, fmt.Errorf("owner address is required")
	}
	receiver := req.Receiver
	if receiver == (common.Address{}) {
		receiver = req.Owner
	}

	vault, err := s.resolver.ResolveVault(ctx, req.VaultReference, s.chainID)
	if err != nil {
		return nil, err
	}

	info, err := s.readVault(ctx, vault)
	if err != nil {
		return nil, err
	}

	asset := entity.Asset{Address: info.asset}
	if decimals, err := s.index.GetVaultAssetDecimals(ctx, vault, s.chainID); err == nil {
		asset.Decimals = decimals
	} else {
		s.logger.Warn("index has no asset decimals for vault, reading chain", "vault", vault.Hex(), "error", err)
		if asset, err = s.assetFromChain(ctx, info.asset); err != nil {
			return nil, err
		}
	}

	amount, err := parseAmount(req.Amount, asset.Decimals)
	if err != nil {
		return nil, err
	}

	withdraw, err := s.describe(s.erc4626, vault, "withdraw", amount, receiver, req.Owner)
	if err != nil {
		return nil, err
	}

	plan := &entity.VaultTransactionPlan{
		Kind:    entity.PlanKindWithdraw,
		ChainID: s.chainID,
		Vault:   vault,
		Asset:   asset,
		Owner:   req.Owner,
		Amount:  amount,
		Calls:   []entity.CallDescriptor{withdraw},
	}

	if err := s.simulate(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("withdraw plan built",
		"vault", vault.Hex(),
		"amount", units.Format(amount, asset.Decimals),
		"vaultDecimals", info.decimals)
	return plan, nil
}

// assetFromChain reads the asset metadata. 18 decimals are assumed only when
// the token's decimals() call fails; a failed read is returned.
func (s *Service) assetFromChain(ctx context.Context, token common.Address) (entity.Asset, error) {
	asset, err := s.tokens.GetToken(ctx, s.chainID, token)
	switch {
	case err == nil:
		return asset, nil
	case errors.Is(err, entity.ErrNoDecimals):
		s.logger.Warn("asset decimals unreadable, assuming 18", "asset", token.Hex(), "error", err)
		return entity.Asset{Address: token, Decimals: defaultAssetDecimals}, nil
	default:
		return entity.Asset{}, err
	}
}

// parseAmount converts a human amount to base units. Non-positive and too
// precise amounts are ErrInvalidAmount.
func parseAmount(raw string, decimals int) (*big.Int, error) {
	amount, err := units.ParseAmount(raw, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrInvalidAmount, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be positive", entity.ErrInvalidAmount, raw)
	}
	return amount, nil
}

func (s *Service) describe(contract *abi.ABI, target common.Address, function string, args ...any) (entity.CallDescriptor, error) {
	data, err := contract.Pack(function, args...)
	if err != nil {
		return entity.CallDescriptor{}, fmt.Errorf("packing %s: %w", function, err)
	}
	return entity.CallDescriptor{Target: target, Function: function, Args: args, Data: data}, nil
}

func (s *Service) abiFor(function string) *abi.ABI {
	if function == "approve" {
		return s.erc20
	}
	return s.erc4626
}

var errNoSubmitter = errors.New("no transaction submitter configured")
