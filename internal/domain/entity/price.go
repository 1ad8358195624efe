package entity

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenPrice is a spot USD quote for a token.
type TokenPrice struct {
	ChainID      int64
	Address      common.Address
	PriceUSD     decimal.Decimal
	LiquidityUSD decimal.Decimal
	Volume24hUSD decimal.Decimal
	Source       string
	FetchedAt    time.Time
}
