package dexscreener

import "github.com/shopspring/decimal"

// tokenPairsResponse represents the response from /latest/dex/tokens/{address}.
// Example response:
//
//	{
//	  "schemaVersion": "1.0.0",
//	  "pairs": [{
//	    "chainId": "ethereum",
//	    "dexId": "uniswap",
//	    "pairAddress": "0x...",
//	    "baseToken": {"address": "0x...", "symbol": "WETH"},
//	    "quoteToken": {"address": "0x...", "symbol": "USDC"},
//	    "priceUsd": "3456.78",
//	    "liquidity": {"usd": 12345678.9},
//	    "volume": {"h24": 98765432.1}
//	  }]
//	}
//
// pairs is null when the token is not listed.
type tokenPairsResponse struct {
	Pairs []pairDTO `json:"pairs"`
}

type pairDTO struct {
	ChainID     string              `json:"chainId"`
	DexID       string              `json:"dexId"`
	PairAddress string              `json:"pairAddress"`
	BaseToken   tokenDTO            `json:"baseToken"`
	QuoteToken  tokenDTO            `json:"quoteToken"`
	PriceUSD    decimal.NullDecimal `json:"priceUsd"`
	Liquidity   *struct {
		USD decimal.NullDecimal `json:"usd"`
	} `json:"liquidity"`
	Volume *struct {
		H24 decimal.NullDecimal `json:"h24"`
	} `json:"volume"`
}

type tokenDTO struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}
