package abis

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MarketParams is the Go shape of Morpho Blue's MarketParams tuple. Field
// names follow the ABI component names so go-ethereum can pack it.
type MarketParams struct {
	LoanToken       common.Address
	CollateralToken common.Address
	Oracle          common.Address
	Irm             common.Address
	Lltv            *big.Int
}

// Market is the Go shape of Morpho Blue's Market tuple.
type Market struct {
	TotalSupplyAssets *big.Int
	TotalSupplyShares *big.Int
	TotalBorrowAssets *big.Int
	TotalBorrowShares *big.Int
	LastUpdate        *big.Int
	Fee               *big.Int
}

// GetMorphoBlueABI returns the Morpho Blue view functions used to rebuild a
// position.
func GetMorphoBlueABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{"name": "id", "type": "bytes32"},
				{"name": "user", "type": "address"}
			],
			"name": "position",
			"outputs": [
				{"name": "supplyShares", "type": "uint256"},
				{"name": "borrowShares", "type": "uint128"},
				{"name": "collateral", "type": "uint128"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "id", "type": "bytes32"}],
			"name": "market",
			"outputs": [
				{"name": "totalSupplyAssets", "type": "uint128"},
				{"name": "totalSupplyShares", "type": "uint128"},
				{"name": "totalBorrowAssets", "type": "uint128"},
				{"name": "totalBorrowShares", "type": "uint128"},
				{"name": "lastUpdate", "type": "uint128"},
				{"name": "fee", "type": "uint128"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "id", "type": "bytes32"}],
			"name": "idToMarketParams",
			"outputs": [
				{"name": "loanToken", "type": "address"},
				{"name": "collateralToken", "type": "address"},
				{"name": "oracle", "type": "address"},
				{"name": "irm", "type": "address"},
				{"name": "lltv", "type": "uint256"}
			],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}

// GetIrmABI returns the interest rate model view used for accrual.
func GetIrmABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{
					"components": [
						{"name": "loanToken", "type": "address"},
						{"name": "collateralToken", "type": "address"},
						{"name": "oracle", "type": "address"},
						{"name": "irm", "type": "address"},
						{"name": "lltv", "type": "uint256"}
					],
					"name": "marketParams",
					"type": "tuple"
				},
				{
					"components": [
						{"name": "totalSupplyAssets", "type": "uint128"},
						{"name": "totalSupplyShares", "type": "uint128"},
						{"name": "totalBorrowAssets", "type": "uint128"},
						{"name": "totalBorrowShares", "type": "uint128"},
						{"name": "lastUpdate", "type": "uint128"},
						{"name": "fee", "type": "uint128"}
					],
					"name": "market",
					"type": "tuple"
				}
			],
			"name": "borrowRateView",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}
