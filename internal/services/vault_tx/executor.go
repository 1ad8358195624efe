package vault_tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/retry"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// ExecutePlan submits the plan calls in order. Each transaction must be mined
// successfully before the next one is sent; the first failure stops the
// plan and earlier transactions are not undone.
func (s *Service) ExecutePlan(ctx context.Context, plan *entity.VaultTransactionPlan, signer *bind.TransactOpts) (*entity.ExecutionResult, error) {
	if s.submitter == nil {
		return nil, errNoSubmitter
	}
	if plan == nil || len(plan.Calls) == 0 {
		return nil, fmt.Errorf("plan has no calls")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if err := s.checkChain(plan.ChainID); err != nil {
		return nil, err
	}
	if signer.From != plan.Owner {
		return nil, fmt.Errorf("signer %s is not the plan owner %s", signer.From.Hex(), plan.Owner.Hex())
	}

	result := &entity.ExecutionResult{}
	for i, call := range plan.Calls {
		receipt, err := s.executeStep(ctx, plan, i, call, signer)
		if err != nil {
			return result, err
		}
		result.Hashes = append(result.Hashes, receipt.TxHash)
		result.Receipts = append(result.Receipts, receipt)
	}

	s.logger.Info("plan executed", "kind", plan.Kind, "vault", plan.Vault.Hex(), "transactions", len(result.Hashes))
	return result, nil
}

func (s *Service) executeStep(ctx context.Context, plan *entity.VaultTransactionPlan, i int, call entity.CallDescriptor, signer *bind.TransactOpts) (*types.Receipt, error) {
	log := s.logger.With("kind", plan.Kind, "step", i, "function", call.Function)

	onRetry := func(attempt int, err error, backoff time.Duration) {
		log.Warn("submission failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}
	fail := func(hash common.Hash, receipt *types.Receipt, err error) (*types.Receipt, error) {
		s.finishStep(ctx, plan, i, call, hash, receipt, err)
		return nil, &entity.ExecutionFailedError{Index: i, Function: call.Function, Hash: hash, Err: err}
	}

	tx, err := retry.Do(ctx, s.submitPolicy, onRetry, func(ctx context.Context) (*types.Transaction, error) {
		return s.submitter.SignTx(ctx, signer, call.Target, call.Data)
	})
	if err != nil {
		return fail(common.Hash{}, nil, err)
	}
	hash := tx.Hash()

	// Only the broadcast is retried. Every attempt sends the same signed
	// bytes, so a node that pooled an earlier attempt sees a duplicate.
	err = retry.DoVoid(ctx, s.submitPolicy, onRetry, func(ctx context.Context) error {
		return s.submitter.SendTx(ctx, tx)
	})
	if err != nil {
		return fail(hash, nil, err)
	}
	log.Info("transaction sent", "hash", hash.Hex(), "nonce", tx.Nonce())

	receipt, err := s.submitter.WaitMined(ctx, hash, s.pollInterval, s.receiptTimeout)
	if err != nil {
		if errors.Is(err, outbound.ErrTransactionReverted) && receipt != nil {
			if reason := s.revertReason(ctx, signer.From, tx, receipt.BlockNumber); reason != "" {
				err = fmt.Errorf("%w: %s", err, reason)
			}
		}
		return fail(hash, receipt, err)
	}

	log.Info("transaction mined", "hash", hash.Hex(), "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	s.finishStep(ctx, plan, i, call, hash, receipt, nil)
	return receipt, nil
}

// revertReason replays tx as a call on the state of the block it was mined
// in and decodes the revert. It returns "" when the replay does not revert.
func (s *Service) revertReason(ctx context.Context, from common.Address, tx *types.Transaction, block *big.Int) string {
	_, err := s.submitter.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, block)
	if err == nil {
		s.logger.Warn("reverted transaction succeeds on replay", "hash", tx.Hash().Hex(), "block", block)
		return ""
	}
	return blockchain.RevertReason(err)
}

// finishStep records and publishes the outcome of one step. Publishing
// failures are logged; they never fail the plan.
func (s *Service) finishStep(ctx context.Context, plan *entity.VaultTransactionPlan, i int, call entity.CallDescriptor, hash common.Hash, receipt *types.Receipt, stepErr error) {
	if s.metrics != nil {
		s.metrics.RecordPlanStep(ctx, string(plan.Kind), call.Function, stepErr == nil)
	}
	if s.events == nil {
		return
	}

	event := entity.PlanStepEvent{
		ChainID:   plan.ChainID,
		Kind:      plan.Kind,
		Vault:     plan.Vault.Hex(),
		StepIndex: i,
		Function:  call.Function,
		Success:   stepErr == nil,
		Timestamp: time.Now().UTC(),
	}
	if hash != (common.Hash{}) {
		event.TxHash = hash.Hex()
	}
	if receipt != nil && receipt.BlockNumber != nil {
		event.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if stepErr != nil {
		event.Error = stepErr.Error()
	}

	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish plan step", "step", i, "error", err)
	}
}
