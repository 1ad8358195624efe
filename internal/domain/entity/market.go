// Package entity contains the core domain entities of the Morpho position
// and risk engine. Entities are plain values with validating constructors;
// they carry no I/O.
package entity

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var marketIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// MarketID is the canonical Morpho Blue market identifier: the keccak hash of
// the market parameters, rendered as 0x followed by 64 hex characters.
type MarketID string

// IsCanonicalMarketID reports whether s already has the canonical id shape.
func IsCanonicalMarketID(s string) bool {
	return marketIDPattern.MatchString(s)
}

// ParseMarketID validates s and returns it as a MarketID.
func ParseMarketID(s string) (MarketID, error) {
	if !IsCanonicalMarketID(s) {
		return "", &ResolutionError{Kind: ErrInvalidReference, Reference: s}
	}
	return MarketID(s), nil
}

// Hash returns the id as the bytes32 used in contract calls.
func (id MarketID) Hash() common.Hash {
	return common.HexToHash(string(id))
}

// Equal compares two ids ignoring hex case.
func (id MarketID) Equal(other MarketID) bool {
	return strings.EqualFold(string(id), string(other))
}

func (id MarketID) String() string {
	return string(id)
}

// Asset is an ERC-20 token as seen by a market or vault.
type Asset struct {
	Address  common.Address
	Symbol   string
	Decimals int
}

func (a Asset) validate() error {
	if a.Decimals < 0 {
		return fmt.Errorf("asset %s: decimals must be non-negative, got %d", a.Symbol, a.Decimals)
	}
	return nil
}

// MarketSummary is the index view of a market. It is fetched fresh per
// request because rates move every block.
type MarketSummary struct {
	ID              MarketID
	ChainID         int64
	CollateralAsset Asset
	LoanAsset       Asset
	// LLTV as a percentage, 0 < LLTV <= 100.
	LLTV           decimal.Decimal
	SupplyAPY      decimal.Decimal // percent
	BorrowAPY      decimal.Decimal // percent
	TotalSupplyUSD decimal.Decimal
	TotalBorrowUSD decimal.Decimal
	LiquidityUSD   decimal.Decimal
	// LiquidityAssets is the market liquidity in loan-token units, used to cap
	// withdrawable supply.
	LiquidityAssets decimal.Decimal
}

// NewMarketSummary creates a MarketSummary with validation.
func NewMarketSummary(s MarketSummary) (*MarketSummary, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

var hundred = decimal.NewFromInt(100)

func (s *MarketSummary) validate() error {
	if !IsCanonicalMarketID(string(s.ID)) {
		return fmt.Errorf("invalid market id %q", s.ID)
	}
	if !s.LLTV.IsPositive() || s.LLTV.GreaterThan(hundred) {
		return fmt.Errorf("market %s: LLTV must be in (0, 100], got %s", s.ID, s.LLTV)
	}
	if err := s.CollateralAsset.validate(); err != nil {
		return fmt.Errorf("market %s: %w", s.ID, err)
	}
	if err := s.LoanAsset.validate(); err != nil {
		return fmt.Errorf("market %s: %w", s.ID, err)
	}
	return nil
}

// MarketParams mirrors Morpho Blue's idToMarketParams.
type MarketParams struct {
	LoanToken       common.Address
	CollateralToken common.Address
	Oracle          common.Address
	IRM             common.Address
	LLTV            *big.Int // WAD
}

// MarketState mirrors Morpho Blue's market(id) storage.
type MarketState struct {
	TotalSupplyAssets *big.Int
	TotalSupplyShares *big.Int
	TotalBorrowAssets *big.Int
	TotalBorrowShares *big.Int
	LastUpdate        uint64
	Fee               *big.Int // WAD
}

// RawPosition mirrors Morpho Blue's position(id, user).
type RawPosition struct {
	SupplyShares *big.Int
	BorrowShares *big.Int
	Collateral   *big.Int
}

// IsZero reports whether every share and collateral balance is zero.
func (p RawPosition) IsZero() bool {
	return isZero(p.SupplyShares) && isZero(p.BorrowShares) && isZero(p.Collateral)
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// MarketListing is one entry of the index market list, used for pair
// resolution. Idle markets without a collateral asset appear with a zero
// collateral address.
type MarketListing struct {
	ID              MarketID
	CollateralAsset Asset
	LoanAsset       Asset
}
