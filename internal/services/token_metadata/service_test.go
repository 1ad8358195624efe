package token_metadata

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/memory"
	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
	"github.com/archon-research/stl/stl-morpho/internal/testutil"
)

var (
	token  = common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0")
	mkr    = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	symSel = []byte{0x95, 0xd8, 0x9b, 0x41}
	decSel = []byte{0x31, 0x3c, 0xe5, 0x67}
)

func TestGetToken_ReadsAndCaches(t *testing.T) {
	mc := testutil.NewMockMulticaller()
	symbolData, decimalsData := testutil.PackERC20Metadata(t, "wstETH", 18)
	mc.Respond(token, symSel, symbolData)
	mc.Respond(token, decSel, decimalsData)
	cache := memory.NewTokenCache()

	svc, err := NewService(mc, cache, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		asset, err := svc.GetToken(context.Background(), 1, token)
		if err != nil {
			t.Fatalf("GetToken: %v", err)
		}
		if asset.Symbol != "wstETH" || asset.Decimals != 18 || asset.Address != token {
			t.Errorf("asset = %+v", asset)
		}
	}
	if mc.CallCount != 1 {
		t.Errorf("multicall executed %d times, want 1 (cached afterwards)", mc.CallCount)
	}
	if cache.Len() != 1 {
		t.Errorf("cache len = %d", cache.Len())
	}
}

func TestGetToken_Bytes32Symbol(t *testing.T) {
	mc := testutil.NewMockMulticaller()
	_, decimalsData := testutil.PackERC20Metadata(t, "", 18)
	mc.Respond(mkr, symSel, common.RightPadBytes([]byte("MKR"), 32))
	mc.Respond(mkr, decSel, decimalsData)

	svc, _ := NewService(mc, nil, testutil.DiscardLogger())
	asset, err := svc.GetToken(context.Background(), 1, mkr)
	if err != nil {
		t.Fatal(err)
	}
	if asset.Symbol != "MKR" {
		t.Errorf("symbol = %q, want MKR", asset.Symbol)
	}
}

func TestGetToken_MissingSymbolTolerated(t *testing.T) {
	mc := testutil.NewMockMulticaller()
	_, decimalsData := testutil.PackERC20Metadata(t, "", 6)
	mc.Respond(token, decSel, decimalsData)

	svc, _ := NewService(mc, nil, testutil.DiscardLogger())
	asset, err := svc.GetToken(context.Background(), 1, token)
	if err != nil {
		t.Fatal(err)
	}
	if asset.Decimals != 6 || asset.Symbol != "" {
		t.Errorf("asset = %+v, want 6 decimals and no symbol", asset)
	}
}

func TestGetToken_DecimalsFailure(t *testing.T) {
	symbolData, _ := testutil.PackERC20Metadata(t, "ODD", 0)

	tests := []struct {
		name           string
		setup          func(mc *testutil.MockMulticaller)
		wantNoDecimals bool
	}{
		{
			name:           "decimals reverts",
			setup:          func(mc *testutil.MockMulticaller) { mc.Respond(token, symSel, symbolData) },
			wantNoDecimals: true,
		},
		{
			name: "decimals returns garbage",
			setup: func(mc *testutil.MockMulticaller) {
				mc.Respond(token, symSel, symbolData)
				mc.Respond(token, decSel, []byte{0x01})
			},
			wantNoDecimals: true,
		},
		{
			name: "transport failure",
			setup: func(mc *testutil.MockMulticaller) {
				mc.ExecuteFn = func(context.Context, []outbound.Call, *big.Int) ([]outbound.Result, error) {
					return nil, errors.New("dial tcp: connection refused")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := testutil.NewMockMulticaller()
			tt.setup(mc)
			cache := memory.NewTokenCache()

			svc, _ := NewService(mc, cache, testutil.DiscardLogger())
			_, err := svc.GetToken(context.Background(), 1, token)
			if !errors.Is(err, entity.ErrOnChainRead) {
				t.Fatalf("err = %v, want ErrOnChainRead", err)
			}
			var readErr *entity.OnChainReadError
			if !errors.As(err, &readErr) || readErr.Function != "decimals" || readErr.Target != token {
				t.Errorf("unexpected error detail: %#v", err)
			}
			if got := errors.Is(err, entity.ErrNoDecimals); got != tt.wantNoDecimals {
				t.Errorf("errors.Is(err, ErrNoDecimals) = %v, want %v (err = %v)", got, tt.wantNoDecimals, err)
			}
			if cache.Len() != 0 {
				t.Error("failed reads must not be cached")
			}
		})
	}
}

func TestNewService_RequiresMulticaller(t *testing.T) {
	if _, err := NewService(nil, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
