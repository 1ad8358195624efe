package morphomath

import "math/big"

// Market is the aggregate market state as stored by Morpho Blue.
type Market struct {
	TotalSupplyAssets *big.Int
	TotalSupplyShares *big.Int
	TotalBorrowAssets *big.Int
	TotalBorrowShares *big.Int
	LastUpdate        uint64
	Fee               *big.Int // WAD fraction of interest minted to the fee recipient
}

// Clone returns a deep copy so accrual never mutates the caller's state.
func (m Market) Clone() Market {
	return Market{
		TotalSupplyAssets: new(big.Int).Set(orZero(m.TotalSupplyAssets)),
		TotalSupplyShares: new(big.Int).Set(orZero(m.TotalSupplyShares)),
		TotalBorrowAssets: new(big.Int).Set(orZero(m.TotalBorrowAssets)),
		TotalBorrowShares: new(big.Int).Set(orZero(m.TotalBorrowShares)),
		LastUpdate:        m.LastUpdate,
		Fee:               new(big.Int).Set(orZero(m.Fee)),
	}
}

// Accrue returns the market state as it would be after accruing interest at
// borrowRate (per-second, WAD) from LastUpdate until now (unix seconds).
//
// A nil or zero rate, or now not after LastUpdate, returns an unchanged copy.
func Accrue(m Market, borrowRate *big.Int, now uint64) Market {
	out := m.Clone()
	if now <= m.LastUpdate || borrowRate == nil || borrowRate.Sign() == 0 {
		return out
	}
	elapsed := now - m.LastUpdate

	interest := WMulDown(out.TotalBorrowAssets, WTaylorCompounded(borrowRate, elapsed))
	out.TotalBorrowAssets.Add(out.TotalBorrowAssets, interest)
	out.TotalSupplyAssets.Add(out.TotalSupplyAssets, interest)

	if out.Fee.Sign() != 0 {
		feeAmount := WMulDown(interest, out.Fee)
		base := new(big.Int).Sub(out.TotalSupplyAssets, feeAmount)
		feeShares := ToSharesDown(feeAmount, base, out.TotalSupplyShares)
		out.TotalSupplyShares.Add(out.TotalSupplyShares, feeShares)
	}

	out.LastUpdate = now
	return out
}
