package entity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// VaultAPY groups the vault yield figures, all in percent.
type VaultAPY struct {
	Instant decimal.Decimal
	Daily   decimal.Decimal
	Weekly  decimal.Decimal
	Monthly decimal.Decimal
	Yearly  decimal.Decimal
}

// VaultAllocation is the part of a vault's deposits supplied to one market.
type VaultAllocation struct {
	MarketID       MarketID
	SuppliedAssets decimal.Decimal // asset units
	SupplyCap      decimal.Decimal // asset units
}

// VaultData is the index view of a MetaMorpho (ERC-4626) vault.
type VaultData struct {
	Address           common.Address
	ChainID           int64
	Name              string
	Symbol            string
	Asset             Asset
	TotalAssetsTokens decimal.Decimal
	TotalAssetsUSD    *decimal.Decimal
	TotalSupplyShares *big.Int
	APY               VaultAPY
	Allocations       []VaultAllocation
}

// NewVaultData creates a VaultData with validation.
func NewVaultData(v VaultData) (*VaultData, error) {
	if v.Address == (common.Address{}) {
		return nil, fmt.Errorf("vault address must not be zero")
	}
	if err := v.Asset.validate(); err != nil {
		return nil, fmt.Errorf("vault %s: %w", v.Address.Hex(), err)
	}
	if v.TotalSupplyShares == nil {
		v.TotalSupplyShares = new(big.Int)
	}
	return &v, nil
}

// VaultListing is one entry of the whitelisted vault list used for name
// resolution.
type VaultListing struct {
	Address common.Address
	Name    string
	Symbol  string
	ChainID int64
}
