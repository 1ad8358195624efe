package coingecko

import "github.com/shopspring/decimal"

// tokenPriceResponse represents the response from /simple/token_price/{platform}.
// Keys are lowercased contract addresses. Example response:
//
//	{
//	  "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {
//	    "usd": 3456.78,
//	    "usd_24h_vol": 12345678901,
//	    "last_updated_at": 1704067200
//	  }
//	}
//
// Unknown contracts are simply absent.
type tokenPriceResponse map[string]tokenPriceData

type tokenPriceData struct {
	USD         decimal.NullDecimal `json:"usd"`
	USD24hVol   decimal.NullDecimal `json:"usd_24h_vol"`
	LastUpdated int64               `json:"last_updated_at"`
}

// coinGeckoError represents an error response from the CoinGecko API.
type coinGeckoError struct {
	Error  string `json:"error"`
	Status struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func (e coinGeckoError) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Status.ErrorMessage
}
