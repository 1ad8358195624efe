package memory

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
)

func TestTokenCache_SetGet(t *testing.T) {
	ctx := context.Background()
	cache := NewTokenCache()
	usdc := entity.Asset{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}

	if _, ok, err := cache.GetToken(ctx, 1, usdc.Address); ok || err != nil {
		t.Fatalf("empty cache returned ok=%v err=%v", ok, err)
	}

	if err := cache.SetToken(ctx, 1, usdc); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	got, ok, err := cache.GetToken(ctx, 1, usdc.Address)
	if err != nil || !ok {
		t.Fatalf("GetToken ok=%v err=%v", ok, err)
	}
	if *got != usdc {
		t.Errorf("got %+v, want %+v", *got, usdc)
	}

	if _, ok, _ := cache.GetToken(ctx, 8453, usdc.Address); ok {
		t.Error("entries must be scoped by chain")
	}
}

func TestTokenCache_Closed(t *testing.T) {
	cache := NewTokenCache()
	_ = cache.Close()
	if err := cache.SetToken(context.Background(), 1, entity.Asset{}); err == nil {
		t.Error("expected error writing to a closed cache")
	}
}

func TestEventSink(t *testing.T) {
	ctx := context.Background()
	sink := NewEventSink()

	var seen int
	sink.OnPublish(func(entity.PlanStepEvent) { seen++ })

	_ = sink.Publish(ctx, entity.PlanStepEvent{StepIndex: 0, Function: "approve", Success: true})
	_ = sink.Publish(ctx, entity.PlanStepEvent{StepIndex: 1, Function: "deposit", Success: false, Error: "reverted"})

	if sink.GetEventCount() != 2 || seen != 2 {
		t.Fatalf("count=%d seen=%d, want 2", sink.GetEventCount(), seen)
	}
	failed := sink.GetFailedEvents()
	if len(failed) != 1 || failed[0].Function != "deposit" {
		t.Errorf("failed = %+v", failed)
	}

	_ = sink.Close()
	_ = sink.Publish(ctx, entity.PlanStepEvent{})
	if sink.GetEventCount() != 2 {
		t.Error("events after Close must be dropped")
	}

	sink.Clear()
	if len(sink.GetEvents()) != 0 {
		t.Error("Clear should empty the sink")
	}
}
