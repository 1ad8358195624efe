package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
	"github.com/archon-research/stl/stl-morpho/internal/testutil"
)

var (
	usdc = entity.Asset{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	weth = entity.Asset{Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Symbol: "WETH", Decimals: 18}
	eurc = entity.Asset{Address: common.HexToAddress("0x1aBaEA1f7C830bD89Acc67eC4af516284b1bC33c"), Symbol: "EURC", Decimals: 6}
)

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingMetrics) RecordRemoteCall(context.Context, string, string, time.Duration, error) {}
func (r *recordingMetrics) RecordPositionBuild(context.Context, time.Duration, error) {}
func (r *recordingMetrics) RecordPlanStep(context.Context, string, string, bool) {}
func (r *recordingMetrics) RecordPriceLookup(_ context.Context, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func newService(t *testing.T, metrics *recordingMetrics, providers ...*testutil.MockPriceProvider) *Service {
	t.Helper()
	cfg := ServiceConfig{Timeout: 50 * time.Millisecond, Logger: testutil.DiscardLogger()}
	if metrics != nil {
		cfg.Metrics = metrics
	}
	svc, err := NewService(cfg, toProviders(providers)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func toProviders(mocks []*testutil.MockPriceProvider) []outbound.TokenPriceProvider {
	out := make([]outbound.TokenPriceProvider, len(mocks))
	for i, m := range mocks {
		out[i] = m
	}
	return out
}

func TestUSDPrice_FirstProviderWins(t *testing.T) {
	first := testutil.NewMockPriceProvider("dexscreener")
	first.Prices[weth.Address] = decimal.RequireFromString("3012.5")
	second := testutil.NewMockPriceProvider("coingecko")
	second.Prices[weth.Address] = decimal.RequireFromString("3000")

	metrics := &recordingMetrics{}
	svc := newService(t, metrics, first, second)

	got := svc.USDPrice(context.Background(), 1, weth)
	if got == nil || !got.Equal(decimal.RequireFromString("3012.5")) {
		t.Fatalf("price = %v, want 3012.5", got)
	}
	if second.Calls() != 0 {
		t.Errorf("second provider should not be asked")
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "dexscreener" {
		t.Errorf("outcomes = %v", metrics.outcomes)
	}
}

func TestUSDPrice_FallsThroughProviders(t *testing.T) {
	failing := testutil.NewMockPriceProvider("dexscreener")
	failing.Err = errors.New("HTTP 502")
	noPair := testutil.NewMockPriceProvider("other")
	last := testutil.NewMockPriceProvider("coingecko")
	last.Prices[weth.Address] = decimal.RequireFromString("2999.99")

	svc := newService(t, nil, failing, noPair, last)

	got := svc.USDPrice(context.Background(), 1, weth)
	if got == nil || !got.Equal(decimal.RequireFromString("2999.99")) {
		t.Fatalf("price = %v", got)
	}
	if failing.Calls() != 1 || noPair.Calls() != 1 || last.Calls() != 1 {
		t.Errorf("each provider should be asked once")
	}
}

func TestUSDPrice_NoPairIsNil(t *testing.T) {
	metrics := &recordingMetrics{}
	svc := newService(t, metrics, testutil.NewMockPriceProvider("dexscreener"))

	if got := svc.USDPrice(context.Background(), 1, weth); got != nil {
		t.Errorf("price = %v, want nil", got)
	}
	if got := svc.USDPrice(context.Background(), 1, usdc); got != nil {
		t.Errorf("USDPrice must not apply the peg, got %v", got)
	}
	if len(metrics.outcomes) != 2 || metrics.outcomes[0] != OutcomeUnavailable {
		t.Errorf("outcomes = %v", metrics.outcomes)
	}
}

func TestUSDPrice_ZeroPriceIgnored(t *testing.T) {
	p := testutil.NewMockPriceProvider("dexscreener")
	p.Prices[weth.Address] = decimal.Zero
	svc := newService(t, nil, p)

	if got := svc.USDPrice(context.Background(), 1, weth); got != nil {
		t.Errorf("price = %v, want nil for a zero quote", got)
	}
}

func TestUSDPriceOrPeg(t *testing.T) {
	tests := []struct {
		name  string
		asset entity.Asset
		quote string
		want  string
	}{
		{name: "stable without feed is pegged", asset: usdc, want: "1"},
		{name: "stable with feed uses feed", asset: usdc, quote: "0.9998", want: "0.9998"},
		{name: "lowercase symbol", asset: entity.Asset{Address: usdc.Address, Symbol: "usdc"}, want: "1"},
		{name: "non-USD stable not pegged", asset: eurc},
		{name: "volatile not pegged", asset: weth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.NewMockPriceProvider("dexscreener")
			if tt.quote != "" {
				p.Prices[tt.asset.Address] = decimal.RequireFromString(tt.quote)
			}
			svc := newService(t, nil, p)

			got := svc.USDPriceOrPeg(context.Background(), 1, tt.asset)
			if tt.want == "" {
				if got != nil {
					t.Errorf("price = %v, want nil", got)
				}
				return
			}
			if got == nil || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("price = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestUSDPrice_TimeoutDegradesToNil(t *testing.T) {
	slow := testutil.NewMockPriceProvider("dexscreener")
	slow.Prices[weth.Address] = decimal.RequireFromString("3000")
	block := make(chan struct{})
	defer close(block)
	slow.Delay = block
	next := testutil.NewMockPriceProvider("coingecko")
	next.Prices[weth.Address] = decimal.RequireFromString("3000")

	svc := newService(t, nil, slow, next)

	start := time.Now()
	got := svc.USDPrice(context.Background(), 1, weth)
	if got != nil {
		t.Errorf("price = %v, want nil after timeout", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("lookup took %v", elapsed)
	}
	if next.Calls() != 0 {
		t.Errorf("no provider should be asked after the deadline")
	}
}

func TestNewService_RejectsNilProvider(t *testing.T) {
	if _, err := NewService(ServiceConfig{}, nil); err == nil {
		t.Fatal("expected error")
	}
}
