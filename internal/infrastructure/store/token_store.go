package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TokenRow is a stored credential token. Only the SHA-256 hash of the token
// ever reaches the database.
type TokenRow struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// TokenStore persists refresh tokens plus the single-use password-reset and
// email-verification tokens. Single-use semantics come from the primary key
// on token_hash and the used flag.
type TokenStore interface {
	InsertRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*TokenRow, bool, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	DeleteRefreshTokensForUser(ctx context.Context, userID string) error

	InsertPasswordResetToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	GetPasswordResetToken(ctx context.Context, tokenHash string) (*TokenRow, bool, error)
	MarkPasswordResetTokenUsed(ctx context.Context, tokenHash string) error

	InsertEmailVerificationToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	GetEmailVerificationToken(ctx context.Context, tokenHash string) (*TokenRow, bool, error)
	MarkEmailVerificationTokenUsed(ctx context.Context, tokenHash string) error
}

// PostgresTokenStore implements TokenStore over the three token tables.
type PostgresTokenStore struct {
	db *sql.DB
}

func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

// ---- refresh tokens ----

func (ts *PostgresTokenStore) InsertRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := ts.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, tokenHash, userID, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (ts *PostgresTokenStore) GetRefreshToken(ctx context.Context, tokenHash string) (*TokenRow, bool, error) {
	row := ts.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, expires_at, created_at FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	var t TokenRow
	err := row.Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get refresh token: %w", err)
	}
	return &t, true, nil
}

// DeleteRefreshToken is idempotent; logout of an unknown token succeeds.
func (ts *PostgresTokenStore) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	if _, err := ts.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteRefreshTokensForUser revokes every session, used after a password
// reset completes.
func (ts *PostgresTokenStore) DeleteRefreshTokensForUser(ctx context.Context, userID string) error {
	if _, err := ts.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete refresh tokens for %s: %w", userID, err)
	}
	return nil
}

// ---- password reset tokens ----

func (ts *PostgresTokenStore) InsertPasswordResetToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return ts.insertSingleUse(ctx, "password_reset_tokens", tokenHash, userID, expiresAt)
}

func (ts *PostgresTokenStore) GetPasswordResetToken(ctx context.Context, tokenHash string) (*TokenRow, bool, error) {
	return ts.getSingleUse(ctx, "password_reset_tokens", tokenHash)
}

func (ts *PostgresTokenStore) MarkPasswordResetTokenUsed(ctx context.Context, tokenHash string) error {
	return ts.markUsed(ctx, "password_reset_tokens", tokenHash)
}

// ---- email verification tokens ----

func (ts *PostgresTokenStore) InsertEmailVerificationToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return ts.insertSingleUse(ctx, "email_verification_tokens", tokenHash, userID, expiresAt)
}

func (ts *PostgresTokenStore) GetEmailVerificationToken(ctx context.Context, tokenHash string) (*TokenRow, bool, error) {
	return ts.getSingleUse(ctx, "email_verification_tokens", tokenHash)
}

func (ts *PostgresTokenStore) MarkEmailVerificationTokenUsed(ctx context.Context, tokenHash string) error {
	return ts.markUsed(ctx, "email_verification_tokens", tokenHash)
}

// Both single-use tables share a shape; the table name is always one of the
// two literals above, never caller input.

func (ts *PostgresTokenStore) insertSingleUse(ctx context.Context, table, tokenHash, userID string, expiresAt time.Time) error {
	_, err := ts.db.ExecContext(ctx, `
		INSERT INTO `+table+` (token_hash, user_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
	`, tokenHash, userID, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (ts *PostgresTokenStore) getSingleUse(ctx context.Context, table, tokenHash string) (*TokenRow, bool, error) {
	row := ts.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, expires_at, used, created_at FROM `+table+` WHERE token_hash = $1`, tokenHash)
	var t TokenRow
	err := row.Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", table, err)
	}
	return &t, true, nil
}

func (ts *PostgresTokenStore) markUsed(ctx context.Context, table, tokenHash string) error {
	if _, err := ts.db.ExecContext(ctx,
		`UPDATE `+table+` SET used = TRUE WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("mark %s used: %w", table, err)
	}
	return nil
}
