package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/example/eventshop/internal/apperr"
)

// uniqueViolation is the PostgreSQL error code raised by the unique index on
// (aggregate_id, version). It is the optimistic lock for the whole system.
const uniqueViolation = "23505"

// PostgresEventStore is the primary EventLog implementation. Appends commit
// transactionally; committed events are then pushed to the bus for
// downstream consumers.
type PostgresEventStore struct {
	db        *sql.DB
	publisher Publisher
}

// NewPostgresEventStore wires the store to a database and an optional
// publisher. A nil publisher disables bus fan-out (used by the projector
// binary, which only reads).
func NewPostgresEventStore(db *sql.DB, publisher Publisher) *PostgresEventStore {
	return &PostgresEventStore{
		db:        db,
		publisher: publisher,
	}
}

// Append persists the batch in one transaction with versions
// expectedVersion+1..expectedVersion+len(events). A concurrent writer that
// already claimed any of those versions surfaces as VERSION_CONFLICT via the
// unique index, never by matching error text.
func (es *PostgresEventStore) Append(ctx context.Context, aggregateID, aggregateType string, events []EventData, expectedVersion int) ([]Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := es.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	stored := make([]Event, 0, len(events))
	for i, ed := range events {
		payload, err := json.Marshal(ed.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ed.EventType, err)
		}

		event := Event{
			ID:            uuid.New().String(),
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			EventType:     ed.EventType,
			Payload:       payload,
			Version:       expectedVersion + i + 1,
			CreatedAt:     now,
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO domain_events (id, aggregate_id, aggregate_type, event_type, payload, version, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			event.ID,
			event.AggregateID,
			event.AggregateType,
			event.EventType,
			[]byte(event.Payload),
			event.Version,
			event.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, apperr.Newf(apperr.CodeVersionConflict,
					"aggregate %s was modified concurrently (expected version %d)",
					aggregateID, expectedVersion)
			}
			return nil, fmt.Errorf("insert %s v%d: %w", event.EventType, event.Version, err)
		}

		stored = append(stored, event)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	es.publish(ctx, stored)
	return stored, nil
}

// publish fans committed events out to the bus. The append already
// committed, so failures are logged rather than returned: consumers catch up
// from the log.
func (es *PostgresEventStore) publish(ctx context.Context, events []Event) {
	if es.publisher == nil {
		return
	}
	for _, event := range events {
		if err := es.publisher.Publish(ctx, event.AggregateID, event); err != nil {
			log.Printf("[EventStore] Failed to publish %s event %s: %v", event.EventType, event.ID, err)
		}
	}
}

// LoadEvents returns the aggregate's history ordered by version ascending.
func (es *PostgresEventStore) LoadEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	rows, err := es.db.QueryContext(ctx,
		`SELECT id, aggregate_id, aggregate_type, event_type, payload, version, created_at
		 FROM domain_events
		 WHERE aggregate_id = $1
		 ORDER BY version ASC`,
		aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", aggregateID, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LoadAllEvents returns the whole log in commit order. Used by the projector
// to rebuild read models from scratch.
func (es *PostgresEventStore) LoadAllEvents(ctx context.Context) ([]Event, error) {
	rows, err := es.db.QueryContext(ctx,
		`SELECT id, aggregate_id, aggregate_type, event_type, payload, version, created_at
		 FROM domain_events
		 ORDER BY created_at ASC, version ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("load all events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &payload, &e.Version, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// isUniqueViolation matches the driver's typed error, never message text.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// ConnectPostgres opens a pooled connection and verifies it.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
