package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// instrumentationName is the name used for OpenTelemetry instrumentation.
const instrumentationName = "github.com/archon-research/stl/stl-morpho"

// Compile-time assertion that Metrics implements MetricsRecorder.
var _ outbound.MetricsRecorder = (*Metrics)(nil)

// Metrics implements outbound.MetricsRecorder using OpenTelemetry.
//
// Metrics:
//   - morpho.remote.request.duration: latency of index, chain and price calls
//   - morpho.remote.requests.total: remote calls by service/operation/status
//   - morpho.price.lookups.total: price lookups by outcome
//   - morpho.position.build.duration: position build latency
//   - morpho.plan.steps.total: executed plan steps by kind/function/status
type Metrics struct {
	tracer trace.Tracer

	remoteDuration metric.Float64Histogram
	remoteTotal    metric.Int64Counter
	priceLookups   metric.Int64Counter
	buildDuration  metric.Float64Histogram
	planSteps      metric.Int64Counter
}

// NewMetrics creates a recorder on the global tracer and meter providers.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProviders(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewMetricsWithProviders creates a recorder with custom providers.
func NewMetricsWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &Metrics{tracer: tp.Tracer(instrumentationName)}

	var err error

	m.remoteDuration, err = meter.Float64Histogram(
		"morpho.remote.request.duration",
		metric.WithDescription("Duration of remote calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.remoteTotal, err = meter.Int64Counter(
		"morpho.remote.requests.total",
		metric.WithDescription("Total number of remote calls"),
	)
	if err != nil {
		return nil, err
	}

	m.priceLookups, err = meter.Int64Counter(
		"morpho.price.lookups.total",
		metric.WithDescription("Total number of USD price lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.buildDuration, err = meter.Float64Histogram(
		"morpho.position.build.duration",
		metric.WithDescription("Duration of position builds in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.planSteps, err = meter.Int64Counter(
		"morpho.plan.steps.total",
		metric.WithDescription("Total number of executed plan steps"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRemoteCall records the latency and outcome of a remote call.
func (m *Metrics) RecordRemoteCall(ctx context.Context, service, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("status", status(err)),
	)
	m.remoteDuration.Record(ctx, duration.Seconds(), attrs)
	m.remoteTotal.Add(ctx, 1, attrs)
}

// RecordPriceLookup records where a price came from.
func (m *Metrics) RecordPriceLookup(ctx context.Context, outcome string) {
	m.priceLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPositionBuild records one position build.
func (m *Metrics) RecordPositionBuild(ctx context.Context, duration time.Duration, err error) {
	m.buildDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status(err))))
}

// RecordPlanStep records one executed plan step.
func (m *Metrics) RecordPlanStep(ctx context.Context, kind, function string, success bool) {
	s := "success"
	if !success {
		s = "error"
	}
	m.planSteps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("function", function),
		attribute.String("status", s),
	))
}

// StartSpan starts a server span for an inbound request.
func (m *Metrics) StartSpan(ctx context.Context, route string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "morpho."+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
}

// EndSpan ends span, marking it failed when err is set.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
