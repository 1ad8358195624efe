package outbound

import (
	"context"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
)

// EventSink publishes plan execution progress.
type EventSink interface {
	// Publish publishes an executed plan step.
	Publish(ctx context.Context, event entity.PlanStepEvent) error

	// Close closes the sink and releases any resources.
	Close() error
}
