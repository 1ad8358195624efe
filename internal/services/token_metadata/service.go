// Package token_metadata reads ERC-20 symbol and decimals from chain, with a
// cache in front. Both values are immutable for a deployed token.
package token_metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Service reads token metadata.
type Service struct {
	multicaller outbound.Multicaller
	cache       outbound.TokenMetadataCache
	erc20       *abi.ABI
	logger      *slog.Logger
}

// NewService creates the reader. cache may be nil.
func NewService(multicaller outbound.Multicaller, cache outbound.TokenMetadataCache, logger *slog.Logger) (*Service, error) {
	if multicaller == nil {
		return nil, fmt.Errorf("multicaller cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	erc20, err := abis.GetERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("loading ERC20 ABI: %w", err)
	}
	return &Service{
		multicaller: multicaller,
		cache:       cache,
		erc20:       erc20,
		logger:      logger.With("component", "token-metadata"),
	}, nil
}

// GetToken returns the symbol and decimals of token. Failures are
// *entity.OnChainReadError; when the read went through but decimals() itself
// reverted or returned garbage, the error also matches entity.ErrNoDecimals.
// A failing symbol() leaves Symbol empty.
func (s *Service) GetToken(ctx context.Context, chainID int64, token common.Address) (entity.Asset, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetToken(ctx, chainID, token)
		if err != nil {
			s.logger.Warn("token cache read failed", "token", token.Hex(), "error", err)
		} else if ok {
			return *cached, nil
		}
	}

	symbolData, err := s.erc20.Pack("symbol")
	if err != nil {
		return entity.Asset{}, fmt.Errorf("packing symbol: %w", err)
	}
	decimalsData, err := s.erc20.Pack("decimals")
	if err != nil {
		return entity.Asset{}, fmt.Errorf("packing decimals: %w", err)
	}

	results, err := s.multicaller.Execute(ctx, []outbound.Call{
		{Target: token, AllowFailure: true, CallData: symbolData},
		{Target: token, AllowFailure: true, CallData: decimalsData},
	}, nil)
	if err != nil {
		return entity.Asset{}, &entity.OnChainReadError{Target: token, Function: "decimals", Err: err}
	}

	asset := entity.Asset{Address: token}

	decimals, err := s.unpackDecimals(results[1])
	if err != nil {
		return entity.Asset{}, &entity.OnChainReadError{Target: token, Function: "decimals", Err: fmt.Errorf("%w: %w", entity.ErrNoDecimals, err)}
	}
	asset.Decimals = decimals

	if symbol, err := s.unpackSymbol(results[0]); err != nil {
		s.logger.Warn("symbol() unreadable", "token", token.Hex(), "error", err)
	} else {
		asset.Symbol = symbol
	}

	if s.cache != nil {
		if err := s.cache.SetToken(ctx, chainID, asset); err != nil {
			s.logger.Warn("token cache write failed", "token", token.Hex(), "error", err)
		}
	}
	return asset, nil
}

func (s *Service) unpackDecimals(r outbound.Result) (int, error) {
	if !r.Success {
		return 0, errors.New("call reverted")
	}
	var decimals uint8
	if err := s.erc20.UnpackIntoInterface(&decimals, "decimals", r.ReturnData); err != nil {
		return 0, fmt.Errorf("unpacking decimals: %w", err)
	}
	return int(decimals), nil
}

// unpackSymbol accepts string symbols and the bytes32 symbols of older
// tokens such as MKR.
func (s *Service) unpackSymbol(r outbound.Result) (string, error) {
	if !r.Success {
		return "", errors.New("call reverted")
	}
	var symbol string
	if err := s.erc20.UnpackIntoInterface(&symbol, "symbol", r.ReturnData); err == nil {
		return symbol, nil
	}
	if len(r.ReturnData) == 32 {
		return strings.TrimRight(string(r.ReturnData), "\x00"), nil
	}
	return "", fmt.Errorf("unexpected symbol return of %d bytes", len(r.ReturnData))
}
