package store

import (
	"encoding/json"
	"time"
)

// Aggregate types recorded on stored events.
const (
	AggregateTypeProduct = "product"
	AggregateTypeOrder   = "order"
	AggregateTypeUser    = "user"
)

// Event is a stored domain event. Versions are 1-based and contiguous per
// aggregate; (AggregateID, Version) is unique across the log.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EventData is an event awaiting append: its type discriminator plus the
// not-yet-serialised payload.
type EventData struct {
	EventType string
	Payload   any
}

// MarshalJSON returns the JSON encoding of the event.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct{ Alias }{Alias: Alias(e)})
}
