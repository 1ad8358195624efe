package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/testutil"
)

var (
	wstETH = common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0")
	weth   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	sUSDe  = common.HexToAddress("0x9D39A5DE30e57443BfF2A8307A4256c8797A3497")
	pyUSD  = common.HexToAddress("0x6c3ea9036406852006290770BEdFcAbA0e23A0e8")

	wstETHWETH = entity.MarketID("0xb8fc70e82bc5bb53e773626fcc6a23f7eefa036918d7ef216ecfb1950a94a85e")
	sUSDePYUSD = entity.MarketID("0x39d11026eae1c6ec02aa4c0910778664089cdd97c3fd23f68f7cd05e2e95af48")
)

func newTestService(t *testing.T, index *testutil.MockIndex) *Service {
	t.Helper()
	svc, err := NewService(index, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func mainnetIndex() *testutil.MockIndex {
	index := testutil.NewMockIndex()
	index.Markets = []entity.MarketListing{
		{
			ID:              sUSDePYUSD,
			CollateralAsset: entity.Asset{Address: sUSDe, Symbol: "sUSDe", Decimals: 18},
			LoanAsset:       entity.Asset{Address: pyUSD, Symbol: "PYUSD", Decimals: 6},
		},
		{
			ID:              wstETHWETH,
			CollateralAsset: entity.Asset{Address: wstETH, Symbol: "wstETH", Decimals: 18},
			LoanAsset:       entity.Asset{Address: weth, Symbol: "WETH", Decimals: 18},
		},
	}
	return index
}

func TestNewService_RequiresIndex(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Fatal("expected error for nil index")
	}
}

func TestResolveMarket_CanonicalIDSkipsIndex(t *testing.T) {
	index := testutil.NewMockIndex()
	index.Err = errors.New("index must not be called")
	svc := newTestService(t, index)

	refs := []string{
		"0xb8fc70e82bc5bb53e773626fcc6a23f7eefa036918d7ef216ecfb1950a94a85e",
		"0xB8FC70E82BC5BB53E773626FCC6A23F7EEFA036918D7EF216ECFB1950A94A85E",
	}
	for _, ref := range refs {
		got, err := svc.ResolveMarket(context.Background(), ref, 1)
		if err != nil {
			t.Fatalf("ResolveMarket(%s): %v", ref, err)
		}
		if string(got) != ref {
			t.Errorf("ResolveMarket(%s) = %s, want unchanged", ref, got)
		}
	}
	if index.Calls("ListMarkets") != 0 {
		t.Errorf("index called %d times", index.Calls("ListMarkets"))
	}
}

func TestResolveMarket_Pair(t *testing.T) {
	svc := newTestService(t, mainnetIndex())

	tests := []struct {
		ref  string
		want entity.MarketID
	}{
		{"wstETH/WETH", wstETHWETH},
		{"WSTETH/weth", wstETHWETH},
		{"  wstETH / WETH  ", wstETHWETH},
		{"sUSDe/PYUSD", sUSDePYUSD},
		{"susde/pyusd", sUSDePYUSD},
		{"\tsUSDe/\nPYUSD ", sUSDePYUSD},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := svc.ResolveMarket(context.Background(), tt.ref, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveMarket_WhitespaceIdempotent(t *testing.T) {
	svc := newTestService(t, mainnetIndex())

	for _, ref := range []string{"wstETH/WETH", "sUSDe/PYUSD", "FOO/BAR"} {
		parts := strings.Split(ref, "/")
		padded := "  " + parts[0] + "\t/ " + parts[1] + "  "

		want, wantErr := svc.ResolveMarket(context.Background(), ref, 1)
		got, gotErr := svc.ResolveMarket(context.Background(), padded, 1)
		if got != want {
			t.Errorf("%q resolved to %s, %q to %s", ref, want, padded, got)
		}
		if (wantErr == nil) != (gotErr == nil) {
			t.Errorf("%q err=%v, %q err=%v", ref, wantErr, padded, gotErr)
		}
	}
}

func TestResolveMarket_KnownTokenMatchesByAddressOnly(t *testing.T) {
	index := testutil.NewMockIndex()
	index.Markets = []entity.MarketListing{{
		ID:              wstETHWETH,
		CollateralAsset: entity.Asset{Address: common.HexToAddress("0x01"), Symbol: "wstETH"},
		LoanAsset:       entity.Asset{Address: weth, Symbol: "WETH"},
	}}
	svc := newTestService(t, index)

	_, err := svc.ResolveMarket(context.Background(), "wstETH/WETH", 1)
	if !errors.Is(err, entity.ErrMarketNotFound) {
		t.Fatalf("expected ErrMarketNotFound for a spoofed symbol, got %v", err)
	}
}

func TestResolveMarket_FirstMatchWins(t *testing.T) {
	index := mainnetIndex()
	second := entity.MarketID("0x" + strings.Repeat("ab", 32))
	index.Markets = append(index.Markets, entity.MarketListing{
		ID:              second,
		CollateralAsset: entity.Asset{Address: wstETH, Symbol: "wstETH"},
		LoanAsset:       entity.Asset{Address: weth, Symbol: "WETH"},
	})
	svc := newTestService(t, index)

	got, err := svc.ResolveMarket(context.Background(), "wstETH/WETH", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != wstETHWETH {
		t.Errorf("got %s, want first listed market", got)
	}
}

func TestResolveMarket_Errors(t *testing.T) {
	svc := newTestService(t, mainnetIndex())

	tests := []struct {
		ref     string
		wantErr error
	}{
		{"", entity.ErrInvalidReference},
		{"WETH", entity.ErrInvalidReference},
		{"a/b/c", entity.ErrInvalidReference},
		{" /USDC", entity.ErrInvalidReference},
		{"WETH/ ", entity.ErrInvalidReference},
		{"0x1234", entity.ErrInvalidReference},
		{"WETH/wstETH", entity.ErrMarketNotFound},
		{"FOO/BAR", entity.ErrMarketNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			_, err := svc.ResolveMarket(context.Background(), tt.ref, 1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var resErr *entity.ResolutionError
			if !errors.As(err, &resErr) || resErr.ChainID != 1 || resErr.Reference != tt.ref {
				t.Errorf("expected ResolutionError with chain and reference, got %#v", err)
			}
		})
	}
}

func TestResolveMarket_NotFoundNamesChain(t *testing.T) {
	svc := newTestService(t, testutil.NewMockIndex())

	_, err := svc.ResolveMarket(context.Background(), "FOO/BAR", 8453)
	if err == nil || !strings.Contains(err.Error(), "8453") {
		t.Errorf("error should name the chain, got %v", err)
	}
}

func TestResolveMarket_IndexError(t *testing.T) {
	index := testutil.NewMockIndex()
	index.Err = &entity.RemoteIndexError{Query: "Markets", Messages: []string{"boom"}}
	svc := newTestService(t, index)

	_, err := svc.ResolveMarket(context.Background(), "wstETH/WETH", 1)
	if !errors.Is(err, entity.ErrRemoteIndex) {
		t.Errorf("expected remote index error, got %v", err)
	}
}

func vaultIndex() *testutil.MockIndex {
	index := testutil.NewMockIndex()
	index.Vaults = []entity.VaultData{
		{Address: common.HexToAddress("0xBEEf050ecd6a16c4e7bfFbB52Ebba7846C4b8cD4"), Name: "Steakhouse USDC RWA", ChainID: 1},
		{Address: common.HexToAddress("0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB"), Name: "Steakhouse USDC", ChainID: 1},
		{Address: common.HexToAddress("0x38989BBA00BDF8181F4082995b3DEAe96163aC5D"), Name: "Flagship ETH", ChainID: 1},
	}
	return index
}

func TestResolveVault(t *testing.T) {
	svc := newTestService(t, vaultIndex())

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"exact beats earlier substring", "steakhouse usdc", "0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB"},
		{"substring", "RWA", "0xBEEf050ecd6a16c4e7bfFbB52Ebba7846C4b8cD4"},
		{"substring first match", "steak", "0xBEEf050ecd6a16c4e7bfFbB52Ebba7846C4b8cD4"},
		{"trimmed", "  Flagship ETH ", "0x38989BBA00BDF8181F4082995b3DEAe96163aC5D"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ResolveVault(context.Background(), tt.ref, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != common.HexToAddress(tt.want) {
				t.Errorf("got %s, want %s", got.Hex(), tt.want)
			}
		})
	}
}

func TestResolveVault_AddressSkipsIndex(t *testing.T) {
	index := testutil.NewMockIndex()
	index.Err = errors.New("index must not be called")
	svc := newTestService(t, index)

	addr := "0x38989bba00bdf8181f4082995b3deae96163ac5d"
	got, err := svc.ResolveVault(context.Background(), addr, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != common.HexToAddress(addr) {
		t.Errorf("got %s", got.Hex())
	}
}

func TestResolveVault_NotFound(t *testing.T) {
	svc := newTestService(t, vaultIndex())

	_, err := svc.ResolveVault(context.Background(), "Gauntlet WBTC", 8453)
	if !errors.Is(err, entity.ErrVaultNotFound) {
		t.Fatalf("err = %v, want ErrVaultNotFound", err)
	}
	if !strings.Contains(err.Error(), "8453") {
		t.Errorf("error should name the chain: %v", err)
	}
}
