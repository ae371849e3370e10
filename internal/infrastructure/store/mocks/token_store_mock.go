package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/eventshop/internal/infrastructure/store"
)

// MemoryTokenStore is an in-memory TokenStore for tests.
type MemoryTokenStore struct {
	mu            sync.RWMutex
	refresh       map[string]*store.TokenRow
	passwordReset map[string]*store.TokenRow
	emailVerify   map[string]*store.TokenRow
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		refresh:       make(map[string]*store.TokenRow),
		passwordReset: make(map[string]*store.TokenRow),
		emailVerify:   make(map[string]*store.TokenRow),
	}
}

func (m *MemoryTokenStore) InsertRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenHash] = &store.TokenRow{TokenHash: tokenHash, UserID: userID, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryTokenStore) GetRefreshToken(ctx context.Context, tokenHash string) (*store.TokenRow, bool, error) {
	return m.get(m.refresh, tokenHash)
}

func (m *MemoryTokenStore) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenHash)
	return nil
}

func (m *MemoryTokenStore) DeleteRefreshTokensForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, row := range m.refresh {
		if row.UserID == userID {
			delete(m.refresh, hash)
		}
	}
	return nil
}

func (m *MemoryTokenStore) InsertPasswordResetToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return m.insert(m.passwordReset, tokenHash, userID, expiresAt)
}

func (m *MemoryTokenStore) GetPasswordResetToken(ctx context.Context, tokenHash string) (*store.TokenRow, bool, error) {
	return m.get(m.passwordReset, tokenHash)
}

func (m *MemoryTokenStore) MarkPasswordResetTokenUsed(ctx context.Context, tokenHash string) error {
	return m.markUsed(m.passwordReset, tokenHash)
}

func (m *MemoryTokenStore) InsertEmailVerificationToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return m.insert(m.emailVerify, tokenHash, userID, expiresAt)
}

func (m *MemoryTokenStore) GetEmailVerificationToken(ctx context.Context, tokenHash string) (*store.TokenRow, bool, error) {
	return m.get(m.emailVerify, tokenHash)
}

func (m *MemoryTokenStore) MarkEmailVerificationTokenUsed(ctx context.Context, tokenHash string) error {
	return m.markUsed(m.emailVerify, tokenHash)
}

// RefreshTokenCount reports live sessions, used to assert revocation.
func (m *MemoryTokenStore) RefreshTokenCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, row := range m.refresh {
		if row.UserID == userID {
			n++
		}
	}
	return n
}

func (m *MemoryTokenStore) insert(table map[string]*store.TokenRow, tokenHash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table[tokenHash] = &store.TokenRow{TokenHash: tokenHash, UserID: userID, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryTokenStore) get(table map[string]*store.TokenRow, tokenHash string) (*store.TokenRow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := table[tokenHash]
	if !ok {
		return nil, false, nil
	}
	cp := *row
	return &cp, true, nil
}

func (m *MemoryTokenStore) markUsed(table map[string]*store.TokenRow, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := table[tokenHash]; ok {
		row.Used = true
	}
	return nil
}
