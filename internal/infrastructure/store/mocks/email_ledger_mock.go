package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/eventshop/internal/infrastructure/store"
)

// MemoryEmailLedger is an in-memory EmailLedger for tests.
type MemoryEmailLedger struct {
	mu       sync.RWMutex
	attempts map[string]*store.EmailAttempt
}

func NewMemoryEmailLedger() *MemoryEmailLedger {
	return &MemoryEmailLedger{attempts: make(map[string]*store.EmailAttempt)}
}

func ledgerKey(orderID, emailType string) string {
	return orderID + "/" + emailType
}

func (m *MemoryEmailLedger) InsertPending(ctx context.Context, orderID, emailType string, payload []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey(orderID, emailType)
	if _, exists := m.attempts[key]; exists {
		return false, nil
	}
	now := time.Now().UTC()
	m.attempts[key] = &store.EmailAttempt{
		OrderID:   orderID,
		EmailType: emailType,
		Payload:   json.RawMessage(payload),
		Status:    store.EmailStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil
}

func (m *MemoryEmailLedger) MarkSent(ctx context.Context, orderID, emailType string) error {
	return m.setStatus(orderID, emailType, store.EmailStatusSent)
}

func (m *MemoryEmailLedger) IncrementAttempt(ctx context.Context, orderID, emailType, lastError string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ledgerKey(orderID, emailType)]
	if !ok {
		return 0, nil
	}
	a.AttemptCount++
	a.LastError = lastError
	a.UpdatedAt = time.Now().UTC()
	return a.AttemptCount, nil
}

func (m *MemoryEmailLedger) ScheduleRetry(ctx context.Context, orderID, emailType string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[ledgerKey(orderID, emailType)]; ok {
		a.Status = store.EmailStatusRetry
		t := at
		a.NextAttemptAt = &t
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryEmailLedger) MarkFailed(ctx context.Context, orderID, emailType string) error {
	return m.setStatus(orderID, emailType, store.EmailStatusFailed)
}

func (m *MemoryEmailLedger) DueRetries(ctx context.Context, now time.Time, limit int) ([]*store.EmailAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*store.EmailAttempt
	for _, a := range m.attempts {
		if a.Status == store.EmailStatusRetry && a.NextAttemptAt != nil && !a.NextAttemptAt.After(now) {
			cp := *a
			due = append(due, &cp)
			if limit > 0 && len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (m *MemoryEmailLedger) MarkRedispatched(ctx context.Context, orderID, emailType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[ledgerKey(orderID, emailType)]; ok {
		a.Status = store.EmailStatusPending
		a.NextAttemptAt = nil
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Attempt exposes a ledger row for assertions.
func (m *MemoryEmailLedger) Attempt(orderID, emailType string) (*store.EmailAttempt, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[ledgerKey(orderID, emailType)]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

func (m *MemoryEmailLedger) setStatus(orderID, emailType, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[ledgerKey(orderID, emailType)]; ok {
		a.Status = status
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}
