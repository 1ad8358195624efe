package position

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/stl-morpho/internal/testutil"
)

func TestComputeRisk_LLTV915Scenario(t *testing.T) {
	one := testutil.Dec("1")
	risk := computeRisk(testutil.Dec("10"), testutil.Dec("8"), testutil.Dec("91.5"), &one, &one)

	if risk.LTVPct == nil || !risk.LTVPct.Equal(testutil.Dec("80")) {
		t.Errorf("LTV = %v, want 80", risk.LTVPct)
	}
	if risk.LiquidationLoanPerCollateral == nil || risk.LiquidationLoanPerCollateral.StringFixed(3) != "0.874" {
		t.Errorf("liquidation ratio = %v, want ~0.874", risk.LiquidationLoanPerCollateral)
	}
	if risk.CurrentLoanPerCollateral == nil || !risk.CurrentLoanPerCollateral.Equal(one) {
		t.Errorf("current ratio = %v, want 1", risk.CurrentLoanPerCollateral)
	}

	// Negative: the collateral/loan price ratio has to fall by about 12.57%
	// before the position can be liquidated.
	drop := risk.DropToLiquidationPct
	if drop == nil {
		t.Fatal("drop to liquidation is nil")
	}
	if !drop.IsNegative() {
		t.Errorf("drop = %s, want negative", drop)
	}
	if drop.StringFixed(2) != "-12.57" {
		t.Errorf("drop = %s, want -12.57", drop.StringFixed(2))
	}
}

func TestComputeRisk_DropSignMatchesLiquidationCondition(t *testing.T) {
	// Moving the ratio by the reported drop lands exactly on the liquidation
	// ratio, where LTV equals LLTV.
	one := testutil.Dec("1")
	risk := computeRisk(testutil.Dec("10"), testutil.Dec("8"), testutil.Dec("91.5"), &one, &one)

	moved := one.Mul(decimal.NewFromInt(1).Add(risk.DropToLiquidationPct.Div(hundred)))
	ltvAtMoved := testutil.Dec("8").Div(testutil.Dec("10").Mul(moved)).Mul(hundred)
	if ltvAtMoved.StringFixed(6) != "91.500000" {
		t.Errorf("LTV after moving by drop = %s, want LLTV 91.5", ltvAtMoved)
	}
}

func TestComputeRisk_NilWhenDataMissing(t *testing.T) {
	price := testutil.Dec("3000")
	stable := testutil.Dec("1")
	zero := decimal.Zero

	tests := []struct {
		name            string
		collateral      string
		loan            string
		lltv            string
		collateralPrice *decimal.Decimal
		loanPrice       *decimal.Decimal
		wantLiq         bool
		wantCurrent     bool
		wantLTV         bool
		wantDrop        bool
	}{
		{name: "zero collateral", collateral: "0", loan: "5", lltv: "86", collateralPrice: &price, loanPrice: &stable, wantCurrent: true},
		{name: "zero collateral and loan", collateral: "0", loan: "0", lltv: "86", collateralPrice: &price, loanPrice: &stable, wantCurrent: true},
		{name: "no collateral price", collateral: "2", loan: "1000", lltv: "86", loanPrice: &stable, wantLiq: true},
		{name: "no loan price", collateral: "2", loan: "1000", lltv: "86", collateralPrice: &price, wantLiq: true},
		{name: "zero loan price", collateral: "2", loan: "1000", lltv: "86", collateralPrice: &price, loanPrice: &zero, wantLiq: true},
		{name: "zero collateral price", collateral: "2", loan: "1000", lltv: "86", collateralPrice: &zero, loanPrice: &stable, wantLiq: true, wantCurrent: true},
		{name: "zero lltv", collateral: "2", loan: "1000", lltv: "0", collateralPrice: &price, loanPrice: &stable, wantCurrent: true, wantLTV: true},
		{name: "complete", collateral: "2", loan: "1000", lltv: "86", collateralPrice: &price, loanPrice: &stable, wantLiq: true, wantCurrent: true, wantLTV: true, wantDrop: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risk := computeRisk(testutil.Dec(tt.collateral), testutil.Dec(tt.loan), testutil.Dec(tt.lltv), tt.collateralPrice, tt.loanPrice)
			check := func(field string, got *decimal.Decimal, want bool) {
				if (got != nil) != want {
					t.Errorf("%s = %v, want present=%v", field, got, want)
				}
			}
			check("liquidation", risk.LiquidationLoanPerCollateral, tt.wantLiq)
			check("current", risk.CurrentLoanPerCollateral, tt.wantCurrent)
			check("ltv", risk.LTVPct, tt.wantLTV)
			check("drop", risk.DropToLiquidationPct, tt.wantDrop)
		})
	}
}

func TestComputeRisk_ValuesForWethUSDC(t *testing.T) {
	// 2 WETH at 3000 against 3000 USDC at 86% LLTV.
	price := testutil.Dec("3000")
	stable := testutil.Dec("1")
	risk := computeRisk(testutil.Dec("2"), testutil.Dec("3000"), testutil.Dec("86"), &price, &stable)

	if !risk.LTVPct.Equal(testutil.Dec("50")) {
		t.Errorf("LTV = %s, want 50", risk.LTVPct)
	}
	// liquidation at 3000 / (2 * 0.86) = 1744.186...
	if risk.LiquidationLoanPerCollateral.StringFixed(2) != "1744.19" {
		t.Errorf("liquidation = %s", risk.LiquidationLoanPerCollateral)
	}
	// 1744.186/3000 - 1 = -41.86%
	if risk.DropToLiquidationPct.StringFixed(2) != "-41.86" {
		t.Errorf("drop = %s", risk.DropToLiquidationPct)
	}
}
