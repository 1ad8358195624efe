package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace/noop"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation %T is not an int64 sum", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetricsWithProviders(noop.NewTracerProvider(), provider)
	if err != nil {
		t.Fatalf("NewMetricsWithProviders: %v", err)
	}

	ctx := context.Background()
	m.RecordRemoteCall(ctx, "morpho-api", "Market", 20*time.Millisecond, nil)
	m.RecordRemoteCall(ctx, "ethereum", "eth_call", 5*time.Millisecond, errors.New("boom"))
	m.RecordPriceLookup(ctx, "dexscreener")
	m.RecordPriceLookup(ctx, "stable_fallback")
	m.RecordPriceLookup(ctx, "unavailable")
	m.RecordPositionBuild(ctx, 40*time.Millisecond, nil)
	m.RecordPlanStep(ctx, "deposit", "approve", true)

	got := collect(t, reader)
	if n := sumOf(t, got["morpho.remote.requests.total"]); n != 2 {
		t.Errorf("remote requests = %d, want 2", n)
	}
	if n := sumOf(t, got["morpho.price.lookups.total"]); n != 3 {
		t.Errorf("price lookups = %d, want 3", n)
	}
	if n := sumOf(t, got["morpho.plan.steps.total"]); n != 1 {
		t.Errorf("plan steps = %d, want 1", n)
	}
	if _, ok := got["morpho.position.build.duration"].(metricdata.Histogram[float64]); !ok {
		t.Errorf("position build duration missing: %T", got["morpho.position.build.duration"])
	}
}

func TestInitPrometheusMetrics_ServesRecordedMetrics(t *testing.T) {
	pm, err := InitPrometheusMetrics(MetricConfig{})
	if err != nil {
		t.Fatalf("InitPrometheusMetrics: %v", err)
	}
	defer func() { _ = pm.Shutdown(context.Background()) }()

	m, err := NewMetricsWithProviders(noop.NewTracerProvider(), pm.Provider)
	if err != nil {
		t.Fatalf("NewMetricsWithProviders: %v", err)
	}
	m.RecordPriceLookup(context.Background(), "coingecko")

	rec := httptest.NewRecorder()
	pm.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), "morpho_price_lookups_total") {
		t.Errorf("scrape output lacks morpho_price_lookups_total:\n%s", body)
	}
	if !strings.Contains(string(body), `outcome="coingecko"`) {
		t.Error("scrape output lacks the outcome label")
	}
}

func TestEndSpan(t *testing.T) {
	m, err := NewMetricsWithProviders(noop.NewTracerProvider(), sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatal(err)
	}
	_, span := m.StartSpan(context.Background(), "positions")
	EndSpan(span, errors.New("failed"))
}
