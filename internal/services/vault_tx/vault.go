package vault_tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

type vaultInfo struct {
	asset    common.Address
	decimals int
}

// readVault reads asset() and decimals() of the vault in one multicall.
func (s *Service) readVault(ctx context.Context, vault common.Address) (*vaultInfo, error) {
	assetData, err := s.erc4626.Pack("asset")
	if err != nil {
		return nil, fmt.Errorf("packing asset: %w", err)
	}
	decimalsData, err := s.erc4626.Pack("decimals")
	if err != nil {
		return nil, fmt.Errorf("packing decimals: %w", err)
	}

	results, err := s.multicaller.Execute(ctx, []outbound.Call{
		{Target: vault, CallData: assetData},
		{Target: vault, CallData: decimalsData},
	}, nil)
	if err != nil {
		return nil, &entity.OnChainReadError{Target: vault, Function: "asset/decimals", Err: err}
	}

	var asset common.Address
	if err := s.erc4626.UnpackIntoInterface(&asset, "asset", results[0].ReturnData); err != nil {
		return nil, &entity.OnChainReadError{Target: vault, Function: "asset", Err: err}
	}
	if asset == (common.Address{}) {
		return nil, &entity.OnChainReadError{Target: vault, Function: "asset", Err: errors.New("vault reports zero asset")}
	}

	var decimals uint8
	if err := s.erc4626.UnpackIntoInterface(&decimals, "decimals", results[1].ReturnData); err != nil {
		return nil, &entity.OnChainReadError{Target: vault, Function: "decimals", Err: err}
	}

	return &vaultInfo{asset: asset, decimals: int(decimals)}, nil
}

// readDepositState reads the owner's allowance to the vault and the shares
// previewDeposit promises for amount. A vault that does not answer
// previewDeposit yields nil shares.
func (s *Service) readDepositState(ctx context.Context, vault, asset, owner common.Address, amount *big.Int) (*big.Int, *big.Int, error) {
	allowanceData, err := s.erc20.Pack("allowance", owner, vault)
	if err != nil {
		return nil, nil, fmt.Errorf("packing allowance: %w", err)
	}
	previewData, err := s.erc4626.Pack("previewDeposit", amount)
	if err != nil {
		return nil, nil, fmt.Errorf("packing previewDeposit: %w", err)
	}

	results, err := s.multicaller.Execute(ctx, []outbound.Call{
		{Target: asset, CallData: allowanceData},
		{Target: vault, AllowFailure: true, CallData: previewData},
	}, nil)
	if err != nil {
		return nil, nil, &entity.OnChainReadError{Target: asset, Function: "allowance", Err: err}
	}

	allowance := new(big.Int)
	if err := s.erc20.UnpackIntoInterface(&allowance, "allowance", results[0].ReturnData); err != nil {
		return nil, nil, &entity.OnChainReadError{Target: asset, Function: "allowance", Err: err}
	}

	var shares *big.Int
	if results[1].Success {
		out, err := s.erc4626.Unpack("previewDeposit", results[1].ReturnData)
		if err == nil && len(out) == 1 {
			shares, _ = out[0].(*big.Int)
		}
	}
	if shares == nil {
		s.logger.Debug("previewDeposit unavailable", "vault", vault.Hex())
	}

	return allowance, shares, nil
}
