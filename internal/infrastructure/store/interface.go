package store

import "context"

// EventLog is the append-only store of domain events, the single source of
// truth for aggregate state.
type EventLog interface {
	// Append persists events atomically for one aggregate, assigning versions
	// expectedVersion+1 .. expectedVersion+len(events). It fails with a
	// VERSION_CONFLICT error when another writer raced past expectedVersion,
	// and with the underlying storage error otherwise. All events are stored
	// or none.
	Append(ctx context.Context, aggregateID, aggregateType string, events []EventData, expectedVersion int) ([]Event, error)

	// LoadEvents returns the aggregate's full history ordered by version
	// ascending, or an empty slice when the aggregate has no events.
	LoadEvents(ctx context.Context, aggregateID string) ([]Event, error)
}

// Publisher pushes committed events (or dispatch messages) to downstream
// consumers.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}
