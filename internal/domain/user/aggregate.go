package user

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/domain/aggregate"
	"github.com/example/eventshop/internal/infrastructure/store"
)

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Lockout policy: the fifth consecutive failure locks the account for
// fifteen minutes.
const (
	MaxLoginFailures = 5
	LockoutDuration  = 15 * time.Minute
)

// User is the replayed aggregate state. It carries no credentials; those
// live in the write-through users table.
type User struct {
	ID                  string
	Email               string
	Name                string
	Role                string
	EmailVerified       bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	Version             int
	CreatedAt           time.Time
}

func (u *User) GetID() string   { return u.ID }
func (u *User) GetVersion() int { return u.Version }

// IsLocked reports whether the lockout window is still open.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// ApplyEvent folds one event into the state. The failure counter and lock
// window are recomputed entirely from the stream.
func (u *User) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventUserRegistered:
		var e UserRegistered
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		u.ID = e.UserID
		u.Email = e.Email
		u.Name = e.Name
		u.Role = e.Role
		u.CreatedAt = e.CreatedAt

	case EventEmailVerified:
		u.EmailVerified = true

	case EventPasswordResetRequested, EventPasswordReset:
		// No state beyond the audit trail.

	case EventLoginFailed:
		u.FailedLoginAttempts++

	case EventAccountLocked:
		var e AccountLocked
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		until := e.LockedUntil
		u.LockedUntil = &until

	case EventAccountUnlocked:
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	}

	u.Version = event.Version
	return nil
}

// Service owns load, decide and append for the user aggregate.
type Service struct {
	log store.EventLog
}

func NewService(log store.EventLog) *Service {
	return &Service{log: log}
}

// Load replays a user from its stream.
func (s *Service) Load(ctx context.Context, userID string) (*User, error) {
	u, found, err := aggregate.Load(ctx, s.log, userID, func() *User { return &User{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.New(apperr.CodeUserNotFound, "user not found")
	}
	return u, nil
}

// Register appends UserRegistered at expected version 0. The caller owns
// the id so the write-through users row and the stream share it.
func (s *Service) Register(ctx context.Context, userID, email, name, role string) ([]store.Event, error) {
	return s.log.Append(ctx, userID, store.AggregateTypeUser, []store.EventData{{
		EventType: EventUserRegistered,
		Payload: UserRegistered{
			UserID:    userID,
			Email:     email,
			Name:      name,
			Role:      role,
			CreatedAt: time.Now().UTC(),
		},
	}}, 0)
}

// RecordLoginFailure appends LoginFailed, batching AccountLocked into the
// same atomic append when the new counter reaches the limit. A failure while
// the counter is already at the threshold re-locks with a fresh window.
// Returns the updated aggregate so the caller can mirror counters to the
// users row.
func (s *Service) RecordLoginFailure(ctx context.Context, userID string) (*User, []store.Event, error) {
	u, err := s.Load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	batch := []store.EventData{{
		EventType: EventLoginFailed,
		Payload:   LoginFailed{UserID: userID, CreatedAt: now},
	}}
	if u.FailedLoginAttempts+1 >= MaxLoginFailures {
		batch = append(batch, store.EventData{
			EventType: EventAccountLocked,
			Payload:   AccountLocked{UserID: userID, LockedUntil: now.Add(LockoutDuration), CreatedAt: now},
		})
	}

	events, err := s.log.Append(ctx, userID, store.AggregateTypeUser, batch, u.Version)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range events {
		if err := u.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return u, events, nil
}

// RecordLoginSuccess resets the failure counter. It appends AccountUnlocked
// only when there was something to reset.
func (s *Service) RecordLoginSuccess(ctx context.Context, userID string) (*User, []store.Event, error) {
	u, err := s.Load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if u.FailedLoginAttempts == 0 {
		return u, nil, nil
	}

	events, err := s.log.Append(ctx, userID, store.AggregateTypeUser, []store.EventData{{
		EventType: EventAccountUnlocked,
		Payload:   AccountUnlocked{UserID: userID, CreatedAt: time.Now().UTC()},
	}}, u.Version)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range events {
		if err := u.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return u, events, nil
}

func (s *Service) RequestPasswordReset(ctx context.Context, userID string) ([]store.Event, error) {
	u, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.log.Append(ctx, userID, store.AggregateTypeUser, []store.EventData{{
		EventType: EventPasswordResetRequested,
		Payload:   PasswordResetRequested{UserID: userID, CreatedAt: time.Now().UTC()},
	}}, u.Version)
}

func (s *Service) CompletePasswordReset(ctx context.Context, userID string) ([]store.Event, error) {
	u, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.log.Append(ctx, userID, store.AggregateTypeUser, []store.EventData{{
		EventType: EventPasswordReset,
		Payload:   PasswordReset{UserID: userID, CreatedAt: time.Now().UTC()},
	}}, u.Version)
}

func (s *Service) VerifyEmail(ctx context.Context, userID string) ([]store.Event, error) {
	u, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.log.Append(ctx, userID, store.AggregateTypeUser, []store.EventData{{
		EventType: EventEmailVerified,
		Payload:   EmailVerified{UserID: userID, CreatedAt: time.Now().UTC()},
	}}, u.Version)
}
