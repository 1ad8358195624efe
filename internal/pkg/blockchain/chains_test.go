package blockchain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestChainConfig_KnownToken(t *testing.T) {
	mainnet, ok := GetChainConfig(ChainIDMainnet)
	if !ok {
		t.Fatal("mainnet config missing")
	}

	tests := []struct {
		symbol string
		want   common.Address
		ok     bool
	}{
		{"WETH", common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), true},
		{"wstETH", common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"), true},
		{" usdc ", common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), true},
		{"PT-sUSDE", common.Address{}, false},
	}
	for _, tt := range tests {
		got, ok := mainnet.KnownToken(tt.symbol)
		if ok != tt.ok || got != tt.want {
			t.Errorf("KnownToken(%q) = %s, %v; want %s, %v", tt.symbol, got.Hex(), ok, tt.want.Hex(), tt.ok)
		}
	}
}

func TestChainRegistry_Defaults(t *testing.T) {
	for id, cfg := range ChainRegistry {
		if cfg.ChainID != id {
			t.Errorf("chain %d: ChainID = %d", id, cfg.ChainID)
		}
		if cfg.MorphoBlue != MorphoBlue || cfg.Multicall3 != Multicall3 {
			t.Errorf("chain %d: unexpected core addresses", id)
		}
		if cfg.CoinGeckoPlatform == "" || cfg.DexScreenerChain == "" {
			t.Errorf("chain %d: price source ids missing", id)
		}
		if got := cfg.Defaults()["RPC_URL"]; got == "" || got != cfg.PublicRPC {
			t.Errorf("chain %d: RPC_URL default = %q, want %q", id, got, cfg.PublicRPC)
		}
	}

	if _, ok := GetChainConfig(42161); ok {
		t.Error("unsupported chain should not resolve")
	}
}

func TestChainIDByName(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"mainnet", ChainIDMainnet, true},
		{"Ethereum", ChainIDMainnet, true},
		{"base", ChainIDBase, true},
		{"8453", ChainIDBase, true},
		{"arbitrum", 0, false},
	}
	for _, tt := range tests {
		got, ok := ChainIDByName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ChainIDByName(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsStableSymbol(t *testing.T) {
	for _, s := range []string{"USDC", "usdt", "DAI", "crvUSD", "USDe", "GHO"} {
		if !IsStableSymbol(s) {
			t.Errorf("IsStableSymbol(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"WETH", "EURC", "wstETH", ""} {
		if IsStableSymbol(s) {
			t.Errorf("IsStableSymbol(%q) = true, want false", s)
		}
	}
}
