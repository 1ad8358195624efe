// eventsink.go provides an in-memory implementation of EventSink.
//
// Published plan-step events are kept in memory so tests and the CLI can
// inspect what an execution did. All operations are thread-safe. For
// production, use the SNS adapter.
package memory

import (
	"context"
	"sync"

	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/outbound"
)

// Compile-time check that EventSink implements outbound.EventSink
var _ outbound.EventSink = (*EventSink)(nil)

// EventSink is an in-memory implementation of the EventSink port.
type EventSink struct {
	mu     sync.RWMutex
	events []entity.PlanStepEvent
	closed bool

	// Callback for test assertions
	onPublish func(entity.PlanStepEvent)
}

// NewEventSink creates a new in-memory event sink.
func NewEventSink() *EventSink {
	return &EventSink{
		events: make([]entity.PlanStepEvent, 0),
	}
}

// Publish stores the event in memory. Events published after Close are dropped.
func (s *EventSink) Publish(ctx context.Context, event entity.PlanStepEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.events = append(s.events, event)

	if s.onPublish != nil {
		s.onPublish(event)
	}

	return nil
}

// Close marks the sink as closed.
func (s *EventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// GetEvents returns all published events.
func (s *EventSink) GetEvents() []entity.PlanStepEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]entity.PlanStepEvent, len(s.events))
	copy(result, s.events)
	return result
}

// GetFailedEvents returns the events of steps that did not succeed.
func (s *EventSink) GetFailedEvents() []entity.PlanStepEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]entity.PlanStepEvent, 0)
	for _, e := range s.events {
		if !e.Success {
			result = append(result, e)
		}
	}
	return result
}

// GetEventCount returns the number of published events.
func (s *EventSink) GetEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Clear removes all stored events.
func (s *EventSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]entity.PlanStepEvent, 0)
}

// OnPublish sets a callback to be called when an event is published.
func (s *EventSink) OnPublish(fn func(entity.PlanStepEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPublish = fn
}
