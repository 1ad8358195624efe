package entity

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PositionAmounts holds the borrow-side amounts of a position.
type PositionAmounts struct {
	CollateralTokens decimal.Decimal
	CollateralUSD    *decimal.Decimal
	LoanTokens       decimal.Decimal
	LoanUSD          *decimal.Decimal
}

// PositionSupply holds the lending side of a position.
type PositionSupply struct {
	SuppliedTokens             decimal.Decimal
	SuppliedUSD                *decimal.Decimal
	WithdrawableTokens         decimal.Decimal
	WithdrawableUSD            *decimal.Decimal
	SupplyAPY                  decimal.Decimal // percent
	EstimatedAnnualEarnings    decimal.Decimal // loan tokens
	EstimatedAnnualEarningsUSD *decimal.Decimal
	HasSupplied                bool
}

// PositionRaw keeps the on-chain integers the amounts were derived from.
type PositionRaw struct {
	BorrowShares  *big.Int
	SupplyShares  *big.Int
	CollateralRaw *big.Int
}

// PositionRisk holds liquidation metrics. Nil means the inputs were not
// available (usually a missing price), which is different from zero risk.
type PositionRisk struct {
	LLTV                         decimal.Decimal // percent
	CurrentLoanPerCollateral     *decimal.Decimal
	LiquidationLoanPerCollateral *decimal.Decimal
	LTVPct                       *decimal.Decimal
	// DropToLiquidationPct is (liquidation/current - 1) * 100. A negative value
	// is the percentage by which the collateral/loan price ratio has to fall
	// before the position becomes liquidatable.
	DropToLiquidationPct *decimal.Decimal
}

// UserPosition is a fully derived position of User in MarketID.
type UserPosition struct {
	MarketID        MarketID
	ChainID         int64
	User            common.Address
	CollateralAsset Asset
	LoanAsset       Asset

	Amounts PositionAmounts
	Supply  PositionSupply
	Raw     PositionRaw
	Risk    PositionRisk

	HasPosition bool
}

// ComputeHasPosition applies the position rule: any nonzero raw balance or
// any positive derived amount. Both signals are checked because share and
// amount zero-checks can disagree after rounding.
func (p *UserPosition) ComputeHasPosition() bool {
	if !isZero(p.Raw.BorrowShares) || !isZero(p.Raw.SupplyShares) || !isZero(p.Raw.CollateralRaw) {
		return true
	}
	return p.Amounts.CollateralTokens.IsPositive() ||
		p.Amounts.LoanTokens.IsPositive() ||
		p.Supply.SuppliedTokens.IsPositive()
}

// Describe renders a short human-readable summary. A position without any
// balance reads "no open position" rather than showing a 0% LTV.
func (p *UserPosition) Describe() string {
	if !p.HasPosition {
		return fmt.Sprintf("market %s: no open position", p.MarketID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "market %s (%s/%s)\n", p.MarketID, p.CollateralAsset.Symbol, p.LoanAsset.Symbol)
	fmt.Fprintf(&b, "  collateral: %s %s%s\n", p.Amounts.CollateralTokens, p.CollateralAsset.Symbol, usdSuffix(p.Amounts.CollateralUSD))
	fmt.Fprintf(&b, "  borrowed:   %s %s%s\n", p.Amounts.LoanTokens, p.LoanAsset.Symbol, usdSuffix(p.Amounts.LoanUSD))
	if p.Supply.HasSupplied {
		fmt.Fprintf(&b, "  supplied:   %s %s%s (withdrawable %s, APY %s%%)\n",
			p.Supply.SuppliedTokens, p.LoanAsset.Symbol, usdSuffix(p.Supply.SuppliedUSD),
			p.Supply.WithdrawableTokens, p.Supply.SupplyAPY.StringFixed(2))
	}
	fmt.Fprintf(&b, "  LLTV: %s%%  LTV: %s  to liquidation: %s",
		p.Risk.LLTV.String(), pctOrNA(p.Risk.LTVPct), pctOrNA(p.Risk.DropToLiquidationPct))
	return b.String()
}

func usdSuffix(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(" ($%s)", v.StringFixed(2))
}

func pctOrNA(v *decimal.Decimal) string {
	if v == nil {
		return "n/a"
	}
	return v.StringFixed(2) + "%"
}
