// Package morphomath implements the fixed-point arithmetic used to turn
// Morpho Blue share balances into asset amounts and to accrue interest
// between the last on-chain update and now.
//
// All values are unsigned 256-bit integers on chain. The package accepts and
// returns *big.Int so callers can keep using go-ethereum's ABI types, and does
// the arithmetic in uint256 (falling back to big.Int if an intermediate
// product does not fit).
package morphomath

import (
	"math/big"

	"github.com/holiman/uint256"
)

// WAD is 1e18, the fixed-point unit for rates, fees and LLTV.
var WAD = big.NewInt(1_000_000_000_000_000_000)

var wad256 = uint256.NewInt(1_000_000_000_000_000_000)

func toU256(x *big.Int) (*uint256.Int, bool) {
	if x == nil {
		return new(uint256.Int), true
	}
	if x.Sign() < 0 {
		return nil, false
	}
	v, overflow := uint256.FromBig(x)
	return v, !overflow
}

// MulDivDown returns x*y/d rounded down. A zero divisor yields zero.
func MulDivDown(x, y, d *big.Int) *big.Int {
	if d == nil || d.Sign() == 0 {
		return new(big.Int)
	}
	ux, okX := toU256(x)
	uy, okY := toU256(y)
	ud, okD := toU256(d)
	if okX && okY && okD {
		z, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
		if !overflow {
			return z.ToBig()
		}
	}
	z := new(big.Int).Mul(orZero(x), orZero(y))
	return z.Quo(z, d)
}

// MulDivUp returns x*y/d rounded up. A zero divisor yields zero.
func MulDivUp(x, y, d *big.Int) *big.Int {
	if d == nil || d.Sign() == 0 {
		return new(big.Int)
	}
	ux, okX := toU256(x)
	uy, okY := toU256(y)
	ud, okD := toU256(d)
	if okX && okY && okD {
		z, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
		if !overflow {
			if !new(uint256.Int).MulMod(ux, uy, ud).IsZero() {
				z.AddUint64(z, 1)
			}
			return z.ToBig()
		}
	}
	num := new(big.Int).Mul(orZero(x), orZero(y))
	q, r := new(big.Int).QuoRem(num, d, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// ToAssetsDown converts shares to assets, rounding down:
// shares * totalAssets / totalShares, or zero when totalShares is zero.
func ToAssetsDown(shares, totalAssets, totalShares *big.Int) *big.Int {
	return MulDivDown(shares, totalAssets, totalShares)
}

// ToAssetsUp is ToAssetsDown rounded up. Debt is rounded up so a borrower
// never sees less than they owe.
func ToAssetsUp(shares, totalAssets, totalShares *big.Int) *big.Int {
	return MulDivUp(shares, totalAssets, totalShares)
}

// ToSharesDown converts assets to shares, rounding down:
// assets * totalShares / totalAssets, or zero when totalAssets is zero.
func ToSharesDown(assets, totalAssets, totalShares *big.Int) *big.Int {
	return MulDivDown(assets, totalShares, totalAssets)
}

// WMulDown returns x*y/WAD rounded down.
func WMulDown(x, y *big.Int) *big.Int {
	return MulDivDown(x, y, WAD)
}

// WTaylorCompounded approximates e^(x*n) - 1 with the first three terms of
// its Taylor expansion, x being a per-second WAD rate and n seconds.
func WTaylorCompounded(x *big.Int, n uint64) *big.Int {
	ux, ok := toU256(x)
	if !ok {
		return new(big.Int)
	}
	first := new(uint256.Int).Mul(ux, uint256.NewInt(n))
	second, _ := new(uint256.Int).MulDivOverflow(first, first, new(uint256.Int).Mul(uint256.NewInt(2), wad256))
	third, _ := new(uint256.Int).MulDivOverflow(second, first, new(uint256.Int).Mul(uint256.NewInt(3), wad256))
	sum := new(uint256.Int).Add(first, second)
	sum.Add(sum, third)
	return sum.ToBig()
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
