package user

import "time"

const (
	EventUserRegistered         = "UserRegistered"
	EventEmailVerified          = "EmailVerified"
	EventPasswordResetRequested = "PasswordResetRequested"
	EventPasswordReset          = "PasswordReset"
	EventLoginFailed            = "LoginFailed"
	EventAccountLocked          = "AccountLocked"
	EventAccountUnlocked        = "AccountUnlocked"
)

// UserRegistered deliberately omits the password hash. Credentials live only
// in the write-through users table.
type UserRegistered struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type EmailVerified struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PasswordResetRequested records that a reset was issued; the token itself
// never appears in the payload.
type PasswordResetRequested struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type PasswordReset struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginFailed struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type AccountLocked struct {
	UserID      string    `json:"user_id"`
	LockedUntil time.Time `json:"locked_until"`
	CreatedAt   time.Time `json:"created_at"`
}

type AccountUnlocked struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
