package testutil

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain/abis"
)

func mustABI(t *testing.T, load func() (*abi.ABI, error)) *abi.ABI {
	t.Helper()
	parsed, err := load()
	if err != nil {
		t.Fatalf("loading ABI: %v", err)
	}
	return parsed
}

// PackOutputs ABI-encodes values as the return data of method.
func PackOutputs(t *testing.T, contract *abi.ABI, method string, values ...any) []byte {
	t.Helper()
	m, ok := contract.Methods[method]
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	data, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("packing %s outputs: %v", method, err)
	}
	return data
}

// PackInput ABI-encodes a call to method, selector included.
func PackInput(t *testing.T, contract *abi.ABI, method string, args ...any) []byte {
	t.Helper()
	data, err := contract.Pack(method, args...)
	if err != nil {
		t.Fatalf("packing %s input: %v", method, err)
	}
	return data
}

// MorphoABI returns the Morpho Blue ABI or fails the test.
func MorphoABI(t *testing.T) *abi.ABI {
	t.Helper()
	return mustABI(t, abis.GetMorphoBlueABI)
}

// IrmABI returns the IRM ABI or fails the test.
func IrmABI(t *testing.T) *abi.ABI {
	t.Helper()
	return mustABI(t, abis.GetIrmABI)
}

// ERC20ABI returns the ERC-20 ABI or fails the test.
func ERC20ABI(t *testing.T) *abi.ABI {
	t.Helper()
	return mustABI(t, abis.GetERC20ABI)
}

// ERC4626ABI returns the ERC-4626 ABI or fails the test.
func ERC4626ABI(t *testing.T) *abi.ABI {
	t.Helper()
	return mustABI(t, abis.GetERC4626ABI)
}

// PackPosition encodes Morpho Blue position(id, user) return data.
func PackPosition(t *testing.T, supplyShares, borrowShares, collateral *big.Int) []byte {
	t.Helper()
	return PackOutputs(t, MorphoABI(t), "position", supplyShares, borrowShares, collateral)
}

// PackMarket encodes Morpho Blue market(id) return data.
func PackMarket(t *testing.T, m abis.Market) []byte {
	t.Helper()
	return PackOutputs(t, MorphoABI(t), "market",
		m.TotalSupplyAssets, m.TotalSupplyShares, m.TotalBorrowAssets, m.TotalBorrowShares, m.LastUpdate, m.Fee)
}

// PackMarketParams encodes Morpho Blue idToMarketParams(id) return data.
func PackMarketParams(t *testing.T, p abis.MarketParams) []byte {
	t.Helper()
	return PackOutputs(t, MorphoABI(t), "idToMarketParams", p.LoanToken, p.CollateralToken, p.Oracle, p.Irm, p.Lltv)
}

// PackUint256 encodes a single uint256 return value.
func PackUint256(t *testing.T, v *big.Int) []byte {
	t.Helper()
	return common.LeftPadBytes(v.Bytes(), 32)
}

// PackAddress encodes a single address return value.
func PackAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

// PackERC20Metadata returns symbol() and decimals() return data.
func PackERC20Metadata(t *testing.T, symbol string, decimals uint8) (symbolData, decimalsData []byte) {
	t.Helper()
	erc20 := ERC20ABI(t)
	return PackOutputs(t, erc20, "symbol", symbol), PackOutputs(t, erc20, "decimals", decimals)
}

// MulticallResult matches the multicall3 aggregate3 output tuple.
type MulticallResult struct {
	Success    bool
	ReturnData []byte
}

// PackMulticallAggregate3 ABI-encodes results as aggregate3 return data.
func PackMulticallAggregate3(t *testing.T, results []MulticallResult) []byte {
	t.Helper()
	return PackOutputs(t, mustABI(t, abis.GetMulticall3ABI), "aggregate3", results)
}

// Wad returns v * 1e18.
func Wad(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1e18))
}

// Pow10 returns v * 10^exp.
func Pow10(v int64, exp int) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
}
