package position

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/morphomath"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// onChainState is everything read from Morpho Blue for one position.
type onChainState struct {
	position entity.RawPosition
	market   entity.MarketState
	params   entity.MarketParams
}

// readState reads position(id, user), market(id) and idToMarketParams(id)
// in one multicall.
func (s *Service) readState(ctx context.Context, id entity.MarketID, user common.Address) (*onChainState, error) {
	hash := id.Hash()

	positionData, err := s.morphoABI.Pack("position", hash, user)
	if err != nil {
		return nil, fmt.Errorf("packing position: %w", err)
	}
	marketData, err := s.morphoABI.Pack("market", hash)
	if err != nil {
		return nil, fmt.Errorf("packing market: %w", err)
	}
	paramsData, err := s.morphoABI.Pack("idToMarketParams", hash)
	if err != nil {
		return nil, fmt.Errorf("packing idToMarketParams: %w", err)
	}

	results, err := s.multicaller.Execute(ctx, []outbound.Call{
		{Target: s.morphoBlue, CallData: positionData},
		{Target: s.morphoBlue, CallData: marketData},
		{Target: s.morphoBlue, CallData: paramsData},
	}, nil)
	if err != nil {
		return nil, &entity.OnChainReadError{Target: s.morphoBlue, Function: "position/market/idToMarketParams", Err: err}
	}

	state := &onChainState{}

	pos, err := s.morphoABI.Unpack("position", results[0].ReturnData)
	if err != nil || len(pos) != 3 {
		return nil, &entity.OnChainReadError{Target: s.morphoBlue, Function: "position", Err: unpackErr(err, len(pos))}
	}
	state.position = entity.RawPosition{
		SupplyShares: pos[0].(*big.Int),
		BorrowShares: pos[1].(*big.Int),
		Collateral:   pos[2].(*big.Int),
	}

	mkt, err := s.morphoABI.Unpack("market", results[1].ReturnData)
	if err != nil || len(mkt) != 6 {
		return nil, &entity.OnChainReadError{Target: s.morphoBlue, Function: "market", Err: unpackErr(err, len(mkt))}
	}
	state.market = entity.MarketState{
		TotalSupplyAssets: mkt[0].(*big.Int),
		TotalSupplyShares: mkt[1].(*big.Int),
		TotalBorrowAssets: mkt[2].(*big.Int),
		TotalBorrowShares: mkt[3].(*big.Int),
		LastUpdate:        mkt[4].(*big.Int).Uint64(),
		Fee:               mkt[5].(*big.Int),
	}

	params, err := s.morphoABI.Unpack("idToMarketParams", results[2].ReturnData)
	if err != nil || len(params) != 5 {
		return nil, &entity.OnChainReadError{Target: s.morphoBlue, Function: "idToMarketParams", Err: unpackErr(err, len(params))}
	}
	state.params = entity.MarketParams{
		LoanToken:       params[0].(common.Address),
		CollateralToken: params[1].(common.Address),
		Oracle:          params[2].(common.Address),
		IRM:             params[3].(common.Address),
		LLTV:            params[4].(*big.Int),
	}

	return state, nil
}

func unpackErr(err error, n int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("unexpected %d return values", n)
}

// borrowRate asks the market's IRM for the current per-second borrow rate.
// A nil rate means interest is not accrued.
func (s *Service) borrowRate(ctx context.Context, state *onChainState) *big.Int {
	if state.params.IRM == (common.Address{}) || state.market.TotalBorrowAssets.Sign() == 0 {
		return nil
	}

	data, err := s.irmABI.Pack("borrowRateView",
		abis.MarketParams{
			LoanToken:       state.params.LoanToken,
			CollateralToken: state.params.CollateralToken,
			Oracle:          state.params.Oracle,
			Irm:             state.params.IRM,
			Lltv:            state.params.LLTV,
		},
		abis.Market{
			TotalSupplyAssets: state.market.TotalSupplyAssets,
			TotalSupplyShares: state.market.TotalSupplyShares,
			TotalBorrowAssets: state.market.TotalBorrowAssets,
			TotalBorrowShares: state.market.TotalBorrowShares,
			LastUpdate:        new(big.Int).SetUint64(state.market.LastUpdate),
			Fee:               state.market.Fee,
		},
	)
	if err != nil {
		s.logger.Warn("packing borrowRateView failed", "error", err)
		return nil
	}

	results, err := s.multicaller.Execute(ctx, []outbound.Call{
		{Target: state.params.IRM, AllowFailure: true, CallData: data},
	}, nil)
	if err != nil || !results[0].Success {
		s.logger.Warn("borrowRateView failed, using stored totals", "irm", state.params.IRM.Hex(), "error", err)
		return nil
	}

	out, err := s.irmABI.Unpack("borrowRateView", results[0].ReturnData)
	if err != nil || len(out) != 1 {
		s.logger.Warn("unpacking borrowRateView failed", "error", unpackErr(err, len(out)))
		return nil
	}
	return out[0].(*big.Int)
}

// accrue brings the market totals up to now.
func (s *Service) accrue(ctx context.Context, state *onChainState) morphomath.Market {
	m := morphomath.Market{
		TotalSupplyAssets: state.market.TotalSupplyAssets,
		TotalSupplyShares: state.market.TotalSupplyShares,
		TotalBorrowAssets: state.market.TotalBorrowAssets,
		TotalBorrowShares: state.market.TotalBorrowShares,
		LastUpdate:        state.market.LastUpdate,
		Fee:               state.market.Fee,
	}
	now := s.now().Unix()
	if now <= 0 || uint64(now) <= m.LastUpdate {
		return m
	}
	return morphomath.Accrue(m, s.borrowRate(ctx, state), uint64(now))
}
