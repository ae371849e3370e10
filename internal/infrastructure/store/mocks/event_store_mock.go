package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/infrastructure/store"
)

// MockEventLog is an in-memory EventLog for tests. It enforces the same
// optimistic lock as the Postgres store: an append whose expectedVersion
// does not match the current stream length fails with VERSION_CONFLICT.
type MockEventLog struct {
	mu     sync.RWMutex
	events map[string][]store.Event

	AppendCalls []AppendCall
	AppendErr   error
}

// AppendCall records parameters passed to Append.
type AppendCall struct {
	AggregateID     string
	AggregateType   string
	Events          []store.EventData
	ExpectedVersion int
}

func NewMockEventLog() *MockEventLog {
	return &MockEventLog{
		events:      make(map[string][]store.Event),
		AppendCalls: make([]AppendCall, 0),
	}
}

func (m *MockEventLog) Append(ctx context.Context, aggregateID, aggregateType string, events []store.EventData, expectedVersion int) ([]store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls = append(m.AppendCalls, AppendCall{
		AggregateID:     aggregateID,
		AggregateType:   aggregateType,
		Events:          events,
		ExpectedVersion: expectedVersion,
	})

	if m.AppendErr != nil {
		return nil, m.AppendErr
	}

	if expectedVersion != len(m.events[aggregateID]) {
		return nil, apperr.Newf(apperr.CodeVersionConflict,
			"aggregate %s is at version %d, expected %d", aggregateID, len(m.events[aggregateID]), expectedVersion)
	}

	stored := make([]store.Event, 0, len(events))
	for i, ed := range events {
		payload, err := json.Marshal(ed.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ed.EventType, err)
		}
		ev := store.Event{
			ID:            uuid.New().String(),
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			EventType:     ed.EventType,
			Payload:       payload,
			Version:       expectedVersion + i + 1,
			CreatedAt:     time.Now().UTC(),
		}
		m.events[aggregateID] = append(m.events[aggregateID], ev)
		stored = append(stored, ev)
	}
	return stored, nil
}

func (m *MockEventLog) LoadEvents(ctx context.Context, aggregateID string) ([]store.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]store.Event, len(m.events[aggregateID]))
	copy(events, m.events[aggregateID])
	return events, nil
}

func (m *MockEventLog) LoadAllEvents(ctx context.Context) ([]store.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []store.Event
	for _, events := range m.events {
		all = append(all, events...)
	}
	return all, nil
}

// Seed appends an event directly, bypassing call recording. Used to set up
// aggregate history in tests.
func (m *MockEventLog) Seed(aggregateID, aggregateType, eventType string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("seed %s: %v", eventType, err))
	}
	m.events[aggregateID] = append(m.events[aggregateID], store.Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       data,
		Version:       len(m.events[aggregateID]) + 1,
		CreatedAt:     time.Now().UTC(),
	})
}

// Version returns the current stream length for an aggregate.
func (m *MockEventLog) Version(aggregateID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events[aggregateID])
}

// Reset clears streams and recorded calls.
func (m *MockEventLog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]store.Event)
	m.AppendCalls = make([]AppendCall, 0)
	m.AppendErr = nil
}
