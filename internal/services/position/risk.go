package position

import (
	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// computeRisk derives the liquidation metrics of a borrow position. Prices
// are USD per token unit and may be nil; any metric whose inputs are
// missing or degenerate stays nil.
func computeRisk(collateralTokens, loanTokens, lltvPct decimal.Decimal, collateralPrice, loanPrice *decimal.Decimal) entity.PositionRisk {
	risk := entity.PositionRisk{LLTV: lltvPct}

	if collateralTokens.IsPositive() && lltvPct.IsPositive() {
		liq := loanTokens.Div(collateralTokens.Mul(lltvPct.Div(hundred)))
		risk.LiquidationLoanPerCollateral = &liq
	}

	if collateralPrice != nil && loanPrice != nil && loanPrice.IsPositive() {
		current := collateralPrice.Div(*loanPrice)
		risk.CurrentLoanPerCollateral = &current
	}

	if current := risk.CurrentLoanPerCollateral; current != nil {
		denom := collateralTokens.Mul(*current)
		if denom.IsPositive() {
			ltv := loanTokens.Div(denom).Mul(hundred)
			risk.LTVPct = &ltv
		}

		if liq := risk.LiquidationLoanPerCollateral; liq != nil && current.IsPositive() {
			drop := liq.Div(*current).Sub(decimal.NewFromInt(1)).Mul(hundred)
			risk.DropToLiquidationPct = &drop
		}
	}

	return risk
}

func usdValue(amount decimal.Decimal, price *decimal.Decimal) *decimal.Decimal {
	if price == nil {
		return nil
	}
	v := amount.Mul(*price)
	return &v
}
