package mocks

import (
	"context"
	"sync"
)

// MockPublisher records published messages for tests.
type MockPublisher struct {
	mu         sync.RWMutex
	Messages   []PublishedMessage
	PublishErr error
}

// PublishedMessage is one recorded Publish call.
type PublishedMessage struct {
	Key   string
	Value any
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Messages: make([]PublishedMessage, 0)}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Messages = append(m.Messages, PublishedMessage{Key: key, Value: value})
	return nil
}
