// Package aggregate holds the shared event-sourced aggregate machinery.
package aggregate

import (
	"context"
	"fmt"

	"github.com/example/eventshop/internal/infrastructure/store"
)

// Aggregate is state rebuilt by folding an event stream.
type Aggregate interface {
	GetID() string
	GetVersion() int
	ApplyEvent(store.Event) error
}

// Load replays an aggregate from its full event stream. The returned bool
// reports whether any events existed; replay is always from version 1.
func Load[T Aggregate](
	ctx context.Context,
	log store.EventLog,
	id string,
	newAggregate func() T,
) (T, bool, error) {
	agg := newAggregate()

	events, err := log.LoadEvents(ctx, id)
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("load events for %s: %w", id, err)
	}
	if len(events) == 0 {
		var zero T
		return zero, false, nil
	}

	for _, event := range events {
		if err := agg.ApplyEvent(event); err != nil {
			var zero T
			return zero, false, fmt.Errorf("apply %s v%d: %w", event.EventType, event.Version, err)
		}
	}

	return agg, true, nil
}
