// Package telemetry provides the OpenTelemetry metrics and tracing used by
// the services, exported to Prometheus in serve mode.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricConfig holds configuration for the metrics.
type MetricConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Registry receives the exported metrics. A fresh registry with the Go
	// and process collectors is used when nil.
	Registry *prometheus.Registry

	// SetGlobal installs the meter provider as the otel global.
	SetGlobal bool
}

// PrometheusMetrics bundles the meter provider and the scrape handler.
type PrometheusMetrics struct {
	Provider *sdkmetric.MeterProvider
	Handler  http.Handler
}

// Shutdown flushes and stops the meter provider.
func (p *PrometheusMetrics) Shutdown(ctx context.Context) error {
	return p.Provider.Shutdown(ctx)
}

// InitPrometheusMetrics creates a meter provider whose metrics are served by
// the returned handler in the Prometheus exposition format.
func InitPrometheusMetrics(config MetricConfig) (*PrometheusMetrics, error) {
	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	if config.SetGlobal {
		otel.SetMeterProvider(provider)
	}

	return &PrometheusMetrics{
		Provider: provider,
		Handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}
