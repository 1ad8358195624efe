package http

import (
	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
)

type assetResponse struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type marketResponse struct {
	ID              string          `json:"id"`
	ChainID         int64           `json:"chainId"`
	CollateralAsset assetResponse   `json:"collateralAsset"`
	LoanAsset       assetResponse   `json:"loanAsset"`
	LLTV            decimal.Decimal `json:"lltv"`
	SupplyAPY       decimal.Decimal `json:"supplyApy"`
	BorrowAPY       decimal.Decimal `json:"borrowApy"`
	TotalSupplyUSD  decimal.Decimal `json:"totalSupplyUsd"`
	TotalBorrowUSD  decimal.Decimal `json:"totalBorrowUsd"`
	LiquidityUSD    decimal.Decimal `json:"liquidityUsd"`
}

type positionResponse struct {
	MarketID        string        `json:"marketId"`
	ChainID         int64         `json:"chainId"`
	User            string        `json:"user"`
	CollateralAsset assetResponse `json:"collateralAsset"`
	LoanAsset       assetResponse `json:"loanAsset"`
	HasPosition     bool          `json:"hasPosition"`

	CollateralTokens decimal.Decimal  `json:"collateralTokens"`
	CollateralUSD    *decimal.Decimal `json:"collateralUsd"`
	LoanTokens       decimal.Decimal  `json:"loanTokens"`
	LoanUSD          *decimal.Decimal `json:"loanUsd"`

	SuppliedTokens             decimal.Decimal  `json:"suppliedTokens"`
	SuppliedUSD                *decimal.Decimal `json:"suppliedUsd"`
	WithdrawableTokens         decimal.Decimal  `json:"withdrawableTokens"`
	WithdrawableUSD            *decimal.Decimal `json:"withdrawableUsd"`
	SupplyAPY                  decimal.Decimal  `json:"supplyApy"`
	EstimatedAnnualEarnings    decimal.Decimal  `json:"estimatedAnnualEarnings"`
	EstimatedAnnualEarningsUSD *decimal.Decimal `json:"estimatedAnnualEarningsUsd"`

	LLTV                         decimal.Decimal  `json:"lltv"`
	LTV                          *decimal.Decimal `json:"ltv"`
	CurrentLoanPerCollateral     *decimal.Decimal `json:"currentLoanPerCollateral"`
	LiquidationLoanPerCollateral *decimal.Decimal `json:"liquidationLoanPerCollateral"`
	DropToLiquidationPct         *decimal.Decimal `json:"dropToLiquidationPct"`

	BorrowShares string `json:"borrowShares"`
	SupplyShares string `json:"supplyShares"`
	Collateral   string `json:"collateralRaw"`
}

type vaultAPYResponse struct {
	Instant decimal.Decimal `json:"instant"`
	Daily   decimal.Decimal `json:"daily"`
	Weekly  decimal.Decimal `json:"weekly"`
	Monthly decimal.Decimal `json:"monthly"`
	Yearly  decimal.Decimal `json:"yearly"`
}

type allocationResponse struct {
	MarketID       string          `json:"marketId"`
	SuppliedAssets decimal.Decimal `json:"suppliedAssets"`
	SupplyCap      decimal.Decimal `json:"supplyCap"`
}

type vaultResponse struct {
	Address           string               `json:"address"`
	ChainID           int64                `json:"chainId"`
	Name              string               `json:"name"`
	Symbol            string               `json:"symbol"`
	Asset             assetResponse        `json:"asset"`
	TotalAssetsTokens decimal.Decimal      `json:"totalAssets"`
	TotalAssetsUSD    *decimal.Decimal     `json:"totalAssetsUsd"`
	TotalSupplyShares string               `json:"totalSupplyShares"`
	APY               vaultAPYResponse     `json:"apy"`
	Allocations       []allocationResponse `json:"allocations"`
}

func toAssetResponse(a entity.Asset) assetResponse {
	return assetResponse{Address: a.Address.Hex(), Symbol: a.Symbol, Decimals: a.Decimals}
}

func toMarketResponse(m *entity.MarketSummary) marketResponse {
	return marketResponse{
		ID:              string(m.ID),
		ChainID:         m.ChainID,
		CollateralAsset: toAssetResponse(m.CollateralAsset),
		LoanAsset:       toAssetResponse(m.LoanAsset),
		LLTV:            m.LLTV,
		SupplyAPY:       m.SupplyAPY,
		BorrowAPY:       m.BorrowAPY,
		TotalSupplyUSD:  m.TotalSupplyUSD,
		TotalBorrowUSD:  m.TotalBorrowUSD,
		LiquidityUSD:    m.LiquidityUSD,
	}
}

func toPositionResponse(p *entity.UserPosition) positionResponse {
	return positionResponse{
		MarketID:        string(p.MarketID),
		ChainID:         p.ChainID,
		User:            p.User.Hex(),
		CollateralAsset: toAssetResponse(p.CollateralAsset),
		LoanAsset:       toAssetResponse(p.LoanAsset),
		HasPosition:     p.HasPosition,

		CollateralTokens: p.Amounts.CollateralTokens,
		CollateralUSD:    p.Amounts.CollateralUSD,
		LoanTokens:       p.Amounts.LoanTokens,
		LoanUSD:          p.Amounts.LoanUSD,

		SuppliedTokens:             p.Supply.SuppliedTokens,
		SuppliedUSD:                p.Supply.SuppliedUSD,
		WithdrawableTokens:         p.Supply.WithdrawableTokens,
		WithdrawableUSD:            p.Supply.WithdrawableUSD,
		SupplyAPY:                  p.Supply.SupplyAPY,
		EstimatedAnnualEarnings:    p.Supply.EstimatedAnnualEarnings,
		EstimatedAnnualEarningsUSD: p.Supply.EstimatedAnnualEarningsUSD,

		LLTV:                         p.Risk.LLTV,
		LTV:                          p.Risk.LTVPct,
		CurrentLoanPerCollateral:     p.Risk.CurrentLoanPerCollateral,
		LiquidationLoanPerCollateral: p.Risk.LiquidationLoanPerCollateral,
		DropToLiquidationPct:         p.Risk.DropToLiquidationPct,

		BorrowShares: bigString(p.Raw.BorrowShares),
		SupplyShares: bigString(p.Raw.SupplyShares),
		Collateral:   bigString(p.Raw.CollateralRaw),
	}
}

func toVaultResponse(v entity.VaultData) vaultResponse {
	allocations := make([]allocationResponse, 0, len(v.Allocations))
	for _, al := range v.Allocations {
		allocations = append(allocations, allocationResponse{
			MarketID:       string(al.MarketID),
			SuppliedAssets: al.SuppliedAssets,
			SupplyCap:      al.SupplyCap,
		})
	}
	return vaultResponse{
		Address:           v.Address.Hex(),
		ChainID:           v.ChainID,
		Name:              v.Name,
		Symbol:            v.Symbol,
		Asset:             toAssetResponse(v.Asset),
		TotalAssetsTokens: v.TotalAssetsTokens,
		TotalAssetsUSD:    v.TotalAssetsUSD,
		TotalSupplyShares: bigString(v.TotalSupplyShares),
		APY: vaultAPYResponse{
			Instant: v.APY.Instant,
			Daily:   v.APY.Daily,
			Weekly:  v.APY.Weekly,
			Monthly: v.APY.Monthly,
			Yearly:  v.APY.Yearly,
		},
		Allocations: allocations,
	}
}
