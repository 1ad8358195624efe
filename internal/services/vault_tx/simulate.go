package vault_tx

import (
	"context"
	"strings"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// insufficientAllowanceSelector is OpenZeppelin's
// ERC20InsufficientAllowance(address,uint256,uint256).
const insufficientAllowanceSelector = "0xfb8f41b2"

// simulate dry-runs the plan calls from the owner and stores their return
// data on the plan. Any revert fails the plan, except a deposit reverting on
// allowance behind an approve when the node could only simulate calls in
// isolation.
func (s *Service) simulate(ctx context.Context, plan *entity.VaultTransactionPlan) error {
	calls := make([]outbound.SimCall, len(plan.Calls))
	for i, c := range plan.Calls {
		calls[i] = outbound.SimCall{From: plan.Owner, To: c.Target, Data: c.Data}
	}

	report, err := s.simulator.Simulate(ctx, calls)
	if err != nil {
		return &entity.SimulationFailedError{Index: 0, Function: plan.Calls[0].Function, Err: err}
	}
	if len(report.Results) != len(calls) {
		return &entity.SimulationFailedError{Index: len(report.Results), Function: "simulate", Reason: "simulator returned fewer results than calls"}
	}

	for i, res := range report.Results {
		call := &plan.Calls[i]
		if res.Reverted {
			if report.Mode == outbound.SimulationIsolated && s.followsApprove(plan, i) && isAllowanceRevert(res.RevertReason) {
				s.logger.Warn("deposit simulated without the pending approval, allowance revert ignored",
					"vault", plan.Vault.Hex(), "reason", res.RevertReason)
				continue
			}
			return &entity.SimulationFailedError{Index: i, Function: call.Function, Reason: res.RevertReason}
		}

		call.SimulatedReturn = res.ReturnData
		if out, err := s.abiFor(call.Function).Unpack(call.Function, res.ReturnData); err == nil && len(out) > 0 {
			call.Decoded = out[0]
		}
	}
	return nil
}

func (s *Service) followsApprove(plan *entity.VaultTransactionPlan, i int) bool {
	if plan.Calls[i].Function != "deposit" {
		return false
	}
	for _, c := range plan.Calls[:i] {
		if c.Function == "approve" {
			return true
		}
	}
	return false
}

func isAllowanceRevert(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "allowance") || strings.Contains(r, insufficientAllowanceSelector)
}
