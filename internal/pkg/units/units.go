// Package units converts between human decimal token amounts and integer
// base units for an asset with a given decimal count.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeAmount is returned when a negative amount is converted to base units.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrTooPrecise is returned when an amount has more fractional digits than the asset supports.
	ErrTooPrecise = errors.New("amount has more fractional digits than the asset supports")

	// ErrInvalidDecimals is returned for a negative decimal count.
	ErrInvalidDecimals = errors.New("decimals must be non-negative")
)

// MaxDecimals bounds the decimal count accepted from untrusted sources.
const MaxDecimals = 77

// ToBaseUnits converts amount into base units using the asset's decimals.
// The conversion is exact: amounts that would need rounding are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDecimals, decimals)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	shifted := amount.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s with %d decimals", ErrTooPrecise, amount, decimals)
	}
	return shifted.BigInt(), nil
}

// ParseAmount parses a decimal string and converts it to base units.
func ParseAmount(raw string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	return ToBaseUnits(d, decimals)
}

// FromBaseUnits converts base units into a decimal amount. A nil amount is zero.
func FromBaseUnits(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// Format renders base units as a plain decimal string without trailing zeros.
func Format(raw *big.Int, decimals int) string {
	return FromBaseUnits(raw, decimals).String()
}

// FromWad converts an 18-decimal fixed point value (such as an on-chain LLTV)
// to a decimal fraction.
func FromWad(raw *big.Int) decimal.Decimal {
	return FromBaseUnits(raw, 18)
}
