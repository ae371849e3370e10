package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/infrastructure/store/mocks"
)

func newTestUserService() (*Service, *mocks.MockEventLog) {
	log := mocks.NewMockEventLog()
	return NewService(log), log
}

func seedUser(log *mocks.MockEventLog, userID string) {
	log.Seed(userID, store.AggregateTypeUser, EventUserRegistered, UserRegistered{
		UserID: userID,
		Email:  "taro@example.com",
		Name:   "Taro",
		Role:   RoleCustomer,
	})
}

// ============================================
// Registration
// ============================================

func TestService_Register(t *testing.T) {
	service, log := newTestUserService()
	ctx := context.Background()

	events, err := service.Register(ctx, "user-1", "taro@example.com", "Taro", RoleCustomer)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserRegistered, events[0].EventType)
	assert.Equal(t, 0, log.AppendCalls[0].ExpectedVersion)

	payload := log.AppendCalls[0].Events[0].Payload.(UserRegistered)
	assert.Equal(t, "taro@example.com", payload.Email)
}

// ============================================
// Lockout
// ============================================

func TestService_RecordLoginFailure_Increments(t *testing.T) {
	service, log := newTestUserService()
	ctx := context.Background()

	userID := "user-1"
	seedUser(log, userID)

	u, events, err := service.RecordLoginFailure(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, 1, u.FailedLoginAttempts)
	assert.Nil(t, u.LockedUntil)
	require.Len(t, events, 1)
	assert.Equal(t, EventLoginFailed, events[0].EventType)
}

func TestService_RecordLoginFailure_FifthLocksAtomically(t *testing.T) {
	service, log := newTestUserService()
	ctx := context.Background()

	userID := "user-1"
	seedUser(log, userID)
	for i := 0; i < 4; i++ {
		log.Seed(userID, store.AggregateTypeUser, EventLoginFailed, LoginFailed{UserID: userID})
	}

	before := time.Now().UTC()
	u, events, err := service.RecordLoginFailure(ctx, userID)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventLoginFailed, events[0].EventType)
	assert.Equal(t, EventAccountLocked, events[1].EventType)
	// Both events went through one append call.
	assert.Len(t, log.AppendCalls, 1)
	assert.Len(t, log.AppendCalls[0].Events, 2)

	require.NotNil(t, u.LockedUntil)
	assert.WithinDuration(t, before.Add(LockoutDuration), *u.LockedUntil, 2*time.Second)
	assert.True(t, u.IsLocked(time.Now()))
}

func TestService_RecordLoginFailure_RelockAtThreshold(t *testing.T) {
	service, log := newTestUserService()
	ctx := context.Background()

	userID := "user-1"
	seedUser(log, userID)
	for i := 0; i < 4; i++ {
		log.Seed(userID, store.AggregateTypeUser, EventLoginFailed, LoginFailed{UserID: userID})
	}
	log.Seed(userID, store.AggregateTypeUser, EventAccountLocked, AccountLocked{
		UserID:      userID,
		LockedUntil: time.Now().Add(-time.Minute),
	})
	log.Seed(userID, store.AggregateTypeUser, EventLoginFailed, LoginFailed{UserID: userID})

	u, events, err := service.RecordLoginFailure(ctx, userID)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventAccountLocked, events[1].EventType)
	assert.True(t, u.IsLocked(time.Now()))
}

func TestService_RecordLoginSuccess_ResetsCounter(t *testing.T) {
	service, log := newTestUserService()
	ctx := context.Background()

	userID := "user-1"
	seedUser(log, userID)
	log.Seed(userID, store.AggregateTypeUser, EventLoginFailed, LoginFailed{UserID: userID})
	log.Seed(userID, store.AggregateTypeUser, EventLoginFailed, LoginFailed{UserID: userID})

	u, events, err := service.RecordLoginSuccess(ctx, userID)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventAccountUnlocked, events[0].EventType)
	assert.Equal(t, 0, u.FailedLoginAttempts)
}

func TestService_RecordLoginSuccess_NoEventWhenClean(t *testing.T) {
	service, log := newTestUserService()
	ctx := context.Background()

	userID := "user-1"
	seedUser(log, userID)

	_, events, err := service.RecordLoginSuccess(ctx, userID)

	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, log.AppendCalls)
}

// ============================================
// Replay
// ============================================

func TestReplay_LockStateRecomputed(t *testing.T) {
	service, log := newTestUserService()
	ctx := context.Background()

	userID := "user-1"
	seedUser(log, userID)
	for i := 0; i < 5; i++ {
		log.Seed(userID, store.AggregateTypeUser, EventLoginFailed, LoginFailed{UserID: userID})
	}
	log.Seed(userID, store.AggregateTypeUser, EventAccountLocked, AccountLocked{
		UserID:      userID,
		LockedUntil: time.Now().Add(10 * time.Minute),
	})
	log.Seed(userID, store.AggregateTypeUser, EventAccountUnlocked, AccountUnlocked{UserID: userID})

	u, err := service.Load(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, 0, u.FailedLoginAttempts)
	assert.Nil(t, u.LockedUntil)
	assert.False(t, u.IsLocked(time.Now()))
}

func TestReplay_EmailVerified(t *testing.T) {
	service, log := newTestUserService()
	ctx := context.Background()

	userID := "user-1"
	seedUser(log, userID)
	log.Seed(userID, store.AggregateTypeUser, EventEmailVerified, EmailVerified{UserID: userID})

	u, err := service.Load(ctx, userID)

	require.NoError(t, err)
	assert.True(t, u.EmailVerified)
}

func TestService_Load_NotFound(t *testing.T) {
	service, _ := newTestUserService()

	_, err := service.Load(context.Background(), "missing")

	assert.True(t, apperr.IsCode(err, apperr.CodeUserNotFound))
}

// ============================================
// Expired lock window
// ============================================

func TestIsLocked_ExpiredWindow(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	u := &User{LockedUntil: &past}

	assert.False(t, u.IsLocked(time.Now()))
}
