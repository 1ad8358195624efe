package morphoapi

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// graphQLRequest is the POST body of a GraphQL query.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the envelope of every GraphQL answer.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Status     string `json:"status"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

func (e graphQLError) notFound() bool {
	return e.Status == "NOT_FOUND" || e.Extensions.Code == "NOT_FOUND"
}

type assetDTO struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type pageInfoDTO struct {
	Count      int `json:"count"`
	CountTotal int `json:"countTotal"`
}

type marketListItemDTO struct {
	UniqueKey       string    `json:"uniqueKey"`
	LoanAsset       assetDTO  `json:"loanAsset"`
	CollateralAsset *assetDTO `json:"collateralAsset"`
}

type marketsResponse struct {
	Markets struct {
		Items    []marketListItemDTO `json:"items"`
		PageInfo pageInfoDTO         `json:"pageInfo"`
	} `json:"markets"`
}

type marketStateDTO struct {
	SupplyAPY          decimal.NullDecimal `json:"supplyApy"`
	BorrowAPY          decimal.NullDecimal `json:"borrowApy"`
	SupplyAssetsUSD    decimal.NullDecimal `json:"supplyAssetsUsd"`
	BorrowAssetsUSD    decimal.NullDecimal `json:"borrowAssetsUsd"`
	LiquidityAssetsUSD decimal.NullDecimal `json:"liquidityAssetsUsd"`
	LiquidityAssets    decimal.NullDecimal `json:"liquidityAssets"`
}

type marketDTO struct {
	UniqueKey       string          `json:"uniqueKey"`
	LLTV            decimal.Decimal `json:"lltv"`
	LoanAsset       assetDTO        `json:"loanAsset"`
	CollateralAsset *assetDTO       `json:"collateralAsset"`
	State           *marketStateDTO `json:"state"`
}

type marketResponse struct {
	Market *marketDTO `json:"marketByUniqueKey"`
}

type vaultAllocationDTO struct {
	Market struct {
		UniqueKey string `json:"uniqueKey"`
	} `json:"market"`
	SupplyAssets decimal.NullDecimal `json:"supplyAssets"`
	SupplyCap    decimal.NullDecimal `json:"supplyCap"`
}

type vaultStateDTO struct {
	TotalAssets    decimal.NullDecimal  `json:"totalAssets"`
	TotalAssetsUSD decimal.NullDecimal  `json:"totalAssetsUsd"`
	TotalSupply    decimal.NullDecimal  `json:"totalSupply"`
	APY            decimal.NullDecimal  `json:"apy"`
	DailyAPY       decimal.NullDecimal  `json:"dailyApy"`
	WeeklyAPY      decimal.NullDecimal  `json:"weeklyApy"`
	MonthlyAPY     decimal.NullDecimal  `json:"monthlyApy"`
	YearlyAPY      decimal.NullDecimal  `json:"yearlyApy"`
	Allocation     []vaultAllocationDTO `json:"allocation"`
}

type vaultDTO struct {
	Address string         `json:"address"`
	Name    string         `json:"name"`
	Symbol  string         `json:"symbol"`
	Asset   assetDTO       `json:"asset"`
	State   *vaultStateDTO `json:"state"`
}

type vaultsResponse struct {
	Vaults struct {
		Items    []vaultDTO  `json:"items"`
		PageInfo pageInfoDTO `json:"pageInfo"`
	} `json:"vaults"`
}

type vaultResponse struct {
	Vault *vaultDTO `json:"vaultByAddress"`
}

type userPositionsResponse struct {
	User *struct {
		MarketPositions []struct {
			Market struct {
				UniqueKey string `json:"uniqueKey"`
			} `json:"market"`
		} `json:"marketPositions"`
	} `json:"userByAddress"`
}
