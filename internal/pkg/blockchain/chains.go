package blockchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChainConfig holds the per-chain defaults the engine needs.
type ChainConfig struct {
	ChainID    int64
	Name       string
	MorphoBlue common.Address
	Multicall3 common.Address
	// CoinGeckoPlatform is the asset platform id used by /simple/token_price.
	CoinGeckoPlatform string
	// DexScreenerChain is the chainId string DexScreener reports on pairs.
	DexScreenerChain string
	// PublicRPC is a keyless endpoint used when no RPC URL is configured.
	PublicRPC string
	// KnownTokens maps a lowercased symbol to its canonical address. Entries
	// are authoritative: a symbol listed here only matches by address.
	KnownTokens map[string]common.Address
}

var ChainRegistry = map[int64]ChainConfig{
	ChainIDMainnet: {
		ChainID:           ChainIDMainnet,
		Name:              "mainnet",
		MorphoBlue:        MorphoBlue,
		Multicall3:        Multicall3,
		CoinGeckoPlatform: "ethereum",
		DexScreenerChain:  "ethereum",
		PublicRPC:         "https://ethereum-rpc.publicnode.com",
		KnownTokens: map[string]common.Address{
			"weth":   common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
			"wsteth": common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"),
			"usdc":   common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			"usdt":   common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
			"wbtc":   common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
			"dai":    common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
			"weeth":  common.HexToAddress("0xCd5fE23C85820F7B72D0926FC9b05b43E359b7ee"),
			"cbbtc":  common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf"),
		},
	},
	ChainIDBase: {
		ChainID:           ChainIDBase,
		Name:              "base",
		MorphoBlue:        MorphoBlue,
		Multicall3:        Multicall3,
		CoinGeckoPlatform: "base",
		DexScreenerChain:  "base",
		PublicRPC:         "https://mainnet.base.org",
		KnownTokens: map[string]common.Address{
			"weth":   common.HexToAddress("0x4200000000000000000000000000000000000006"),
			"usdc":   common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			"cbeth":  common.HexToAddress("0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22"),
			"wsteth": common.HexToAddress("0xc1CBa3fCea344f92D9239c08C0568f6F2F0ee452"),
			"cbbtc":  common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf"),
		},
	},
}

// GetChainConfig returns the defaults for chainID.
func GetChainConfig(chainID int64) (ChainConfig, bool) {
	cfg, ok := ChainRegistry[chainID]
	return cfg, ok
}

// ChainIDByName maps "mainnet"/"ethereum"/"base" to a chain id.
func ChainIDByName(name string) (int64, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mainnet", "ethereum", "eth", "1":
		return ChainIDMainnet, true
	case "base", "8453":
		return ChainIDBase, true
	}
	return 0, false
}

// Defaults returns the chain's built-in settings keyed by the environment
// variable they default.
func (c ChainConfig) Defaults() map[string]string {
	return map[string]string{
		"RPC_URL": c.PublicRPC,
	}
}

// KnownToken looks up symbol case-insensitively in the chain's registry.
func (c ChainConfig) KnownToken(symbol string) (common.Address, bool) {
	addr, ok := c.KnownTokens[strings.ToLower(strings.TrimSpace(symbol))]
	return addr, ok
}

// USD stablecoins priced at 1.0 when no feed answers. EUR and other non-USD
// stables are deliberately absent.
var stableSymbols = map[string]struct{}{
	"usdc":   {},
	"usdt":   {},
	"dai":    {},
	"usds":   {},
	"pyusd":  {},
	"usde":   {},
	"crvusd": {},
	"frax":   {},
	"gho":    {},
	"lusd":   {},
}

// IsStableSymbol reports whether symbol is a known USD stablecoin.
func IsStableSymbol(symbol string) bool {
	_, ok := stableSymbols[strings.ToLower(strings.TrimSpace(symbol))]
	return ok
}
