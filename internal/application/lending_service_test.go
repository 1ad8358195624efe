package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/blockchain"
	"github.com/archon-research/stl/stl-morpho/internal/services/position"
	"github.com/archon-research/stl/stl-morpho/internal/services/pricing"
	"github.com/archon-research/stl/stl-morpho/internal/services/resolver"
	"github.com/archon-research/stl/stl-morpho/internal/services/token_metadata"
	"github.com/archon-research/stl/stl-morpho/internal/services/vault_tx"
	"github.com/archon-research/stl/stl-morpho/internal/testutil"
)

type fakeChain struct {
	err error
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return 19_000_000, f.err
}

var (
	steakhouse = common.HexToAddress("0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB")
	gauntlet   = common.HexToAddress("0x4881Ef0BF6d2365D3dd6499ccd7532bcdBCE0658")
)

func newTestService(t *testing.T) (*LendingService, *testutil.MockIndex, *fakeChain) {
	t.Helper()
	logger := testutil.DiscardLogger()
	index := testutil.NewMockIndex()
	index.Vaults = []entity.VaultData{
		{Address: steakhouse, ChainID: 1, Name: "Steakhouse USDC"},
		{Address: gauntlet, ChainID: 1, Name: "Gauntlet WETH Prime"},
	}
	mc := testutil.NewMockMulticaller()
	mock := testutil.NewMockChain()
	chain := &fakeChain{}

	res, err := resolver.NewService(index, logger)
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := token_metadata.NewService(mc, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	prices, err := pricing.NewService(pricing.ServiceConfig{Logger: logger}, testutil.NewMockPriceProvider("dexscreener"))
	if err != nil {
		t.Fatal(err)
	}
	positions, err := position.NewService(position.ServiceConfig{ChainID: 1, MorphoBlue: blockchain.MorphoBlue, Logger: logger}, mc, index, prices, tokens)
	if err != nil {
		t.Fatal(err)
	}
	vaults, err := vault_tx.NewService(vault_tx.ServiceConfig{ChainID: 1, Logger: logger}, res, mc, index, tokens, mock, mock)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewLendingService(LendingConfig{ChainID: 1, Logger: logger}, index, chain, res, positions, vaults)
	if err != nil {
		t.Fatal(err)
	}
	return svc, index, chain
}

func TestLendingService_ChainBinding(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ResolveMarket(ctx, "WETH/USDC", 8453); !errors.Is(err, entity.ErrChainNotServed) {
		t.Errorf("ResolveMarket: err = %v, want ErrChainNotServed", err)
	}
	if _, err := svc.GetVaultData(ctx, "", 10); !errors.Is(err, entity.ErrChainNotServed) {
		t.Errorf("GetVaultData: err = %v, want ErrChainNotServed", err)
	}
	if _, err := svc.BuildDepositPlan(ctx, entity.DepositRequest{ChainID: 8453, VaultReference: "Steakhouse", Amount: "1", Owner: steakhouse}); !errors.Is(err, entity.ErrChainNotServed) {
		t.Errorf("BuildDepositPlan: err = %v, want ErrChainNotServed", err)
	}

	id := "0xb323495f7e4148be5643a4ea4a8221eef163e4bccfdedc2a6f4696baacbc86cc"
	got, err := svc.ResolveMarket(ctx, id, 0)
	if err != nil || string(got) != id {
		t.Errorf("ResolveMarket(canonical, 0) = %s, %v", got, err)
	}
}

func TestLendingService_GetVaultData(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	all, err := svc.GetVaultData(ctx, "", 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("all vaults = %d, %v", len(all), err)
	}

	one, err := svc.GetVaultData(ctx, "gauntlet", 1)
	if err != nil {
		t.Fatalf("GetVaultData: %v", err)
	}
	if len(one) != 1 || one[0].Address != gauntlet {
		t.Errorf("got %+v", one)
	}

	if _, err := svc.GetVaultData(ctx, "Re7 wstETH", 1); !errors.Is(err, entity.ErrVaultNotFound) {
		t.Errorf("err = %v, want ErrVaultNotFound", err)
	}
}

func TestLendingService_GetMarketSummaryRejectsPairs(t *testing.T) {
	svc, index, _ := newTestService(t)

	_, err := svc.GetMarketSummary(context.Background(), "WETH/USDC", 0)
	if !errors.Is(err, entity.ErrInvalidReference) {
		t.Errorf("err = %v, want ErrInvalidReference", err)
	}
	if index.Calls("GetMarket") != 0 {
		t.Error("index queried for a non-canonical id")
	}
}

func TestLendingService_Health(t *testing.T) {
	svc, index, chain := newTestService(t)
	ctx := context.Background()

	if svc.IsReady() {
		t.Error("ready before any ping")
	}
	if !svc.IsHealthy() {
		t.Error("unhealthy before any ping")
	}

	if err := svc.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !svc.IsReady() {
		t.Error("not ready after a successful ping")
	}

	chain.err = errors.New("connection refused")
	for i := 0; i < 3; i++ {
		if err := svc.Ping(ctx); err == nil {
			t.Fatal("Ping succeeded with a failing chain")
		}
	}
	if svc.IsHealthy() {
		t.Error("healthy after three failed pings")
	}

	chain.err = nil
	index.Err = &entity.RemoteIndexError{Query: "Vaults", Messages: []string{"down"}}
	if err := svc.Ping(ctx); !errors.Is(err, entity.ErrRemoteIndex) {
		t.Errorf("err = %v, want ErrRemoteIndex", err)
	}

	index.Err = nil
	if err := svc.Ping(ctx); err != nil || !svc.IsHealthy() {
		t.Errorf("recovery: err = %v healthy = %v", err, svc.IsHealthy())
	}
}

func TestLendingService_MonitorStopsWithContext(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.Monitor(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	if !svc.IsReady() {
		t.Error("Monitor should have pinged")
	}
}
