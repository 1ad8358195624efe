// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"
	"time"
)

// MetricsRecorder provides an interface for recording application metrics.
// This allows services to record metrics without depending on specific
// telemetry implementations.
type MetricsRecorder interface {
	// RecordRemoteCall records the latency and outcome of a call to the index,
	// the chain or a price source.
	RecordRemoteCall(ctx context.Context, service, operation string, duration time.Duration, err error)

	// RecordPriceLookup records where a price came from: a provider name,
	// "stable_fallback", or "unavailable".
	RecordPriceLookup(ctx context.Context, outcome string)

	// RecordPositionBuild records one position build.
	RecordPositionBuild(ctx context.Context, duration time.Duration, err error)

	// RecordPlanStep records one executed plan step.
	RecordPlanStep(ctx context.Context, kind, function string, success bool)
}
