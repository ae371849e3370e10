package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Email attempt statuses as stored in email_send_attempts.
const (
	EmailStatusPending = "PENDING"
	EmailStatusSent    = "SENT"
	EmailStatusRetry   = "RETRY"
	EmailStatusFailed  = "FAILED"
)

// EmailAttempt is one row of the retry ledger, keyed by (order_id,
// email_type). It doubles as the enqueue idempotency record.
type EmailAttempt struct {
	OrderID       string
	EmailType     string
	Payload       json.RawMessage
	Status        string
	AttemptCount  int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EmailLedger records dispatch attempts. Retries are self-managed through
// it: the consumer always acknowledges and the ledger decides what is due.
type EmailLedger interface {
	// InsertPending creates the ledger row. It reports false when the row
	// already existed, which makes enqueue idempotent per (orderID, emailType).
	InsertPending(ctx context.Context, orderID, emailType string, payload []byte) (bool, error)

	MarkSent(ctx context.Context, orderID, emailType string) error

	// IncrementAttempt bumps attempt_count and records the error, returning
	// the new count so the consumer can decide between retry and terminal
	// failure.
	IncrementAttempt(ctx context.Context, orderID, emailType, lastError string) (int, error)

	ScheduleRetry(ctx context.Context, orderID, emailType string, at time.Time) error
	MarkFailed(ctx context.Context, orderID, emailType string) error

	// DueRetries returns rows scheduled for retry at or before now.
	DueRetries(ctx context.Context, now time.Time, limit int) ([]*EmailAttempt, error)

	// MarkRedispatched flips a due row back to PENDING once its dispatch
	// message has been re-published.
	MarkRedispatched(ctx context.Context, orderID, emailType string) error
}

// PostgresEmailLedger implements EmailLedger over email_send_attempts.
type PostgresEmailLedger struct {
	db *sql.DB
}

func NewPostgresEmailLedger(db *sql.DB) *PostgresEmailLedger {
	return &PostgresEmailLedger{db: db}
}

func (el *PostgresEmailLedger) InsertPending(ctx context.Context, orderID, emailType string, payload []byte) (bool, error) {
	now := time.Now().UTC()
	res, err := el.db.ExecContext(ctx, `
		INSERT INTO email_send_attempts (order_id, email_type, payload, status, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		ON CONFLICT (order_id, email_type) DO NOTHING
	`, orderID, emailType, payload, EmailStatusPending, now)
	if err != nil {
		return false, fmt.Errorf("insert email attempt %s/%s: %w", orderID, emailType, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert email attempt %s/%s: %w", orderID, emailType, err)
	}
	return n > 0, nil
}

func (el *PostgresEmailLedger) MarkSent(ctx context.Context, orderID, emailType string) error {
	return el.setStatus(ctx, orderID, emailType, EmailStatusSent)
}

func (el *PostgresEmailLedger) IncrementAttempt(ctx context.Context, orderID, emailType, lastError string) (int, error) {
	var count int
	err := el.db.QueryRowContext(ctx, `
		UPDATE email_send_attempts
		SET attempt_count = attempt_count + 1, last_error = $3, updated_at = $4
		WHERE order_id = $1 AND email_type = $2
		RETURNING attempt_count
	`, orderID, emailType, lastError, time.Now().UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment email attempt %s/%s: %w", orderID, emailType, err)
	}
	return count, nil
}

func (el *PostgresEmailLedger) ScheduleRetry(ctx context.Context, orderID, emailType string, at time.Time) error {
	_, err := el.db.ExecContext(ctx, `
		UPDATE email_send_attempts
		SET status = $3, next_attempt_at = $4, updated_at = $5
		WHERE order_id = $1 AND email_type = $2
	`, orderID, emailType, EmailStatusRetry, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("schedule email retry %s/%s: %w", orderID, emailType, err)
	}
	return nil
}

func (el *PostgresEmailLedger) MarkFailed(ctx context.Context, orderID, emailType string) error {
	return el.setStatus(ctx, orderID, emailType, EmailStatusFailed)
}

func (el *PostgresEmailLedger) DueRetries(ctx context.Context, now time.Time, limit int) ([]*EmailAttempt, error) {
	rows, err := el.db.QueryContext(ctx, `
		SELECT order_id, email_type, payload, status, attempt_count, COALESCE(last_error, ''), next_attempt_at, created_at, updated_at
		FROM email_send_attempts
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY next_attempt_at ASC
		LIMIT $3
	`, EmailStatusRetry, now, limit)
	if err != nil {
		return nil, fmt.Errorf("load due email retries: %w", err)
	}
	defer rows.Close()

	var attempts []*EmailAttempt
	for rows.Next() {
		var a EmailAttempt
		var payload []byte
		var nextAttempt sql.NullTime
		if err := rows.Scan(&a.OrderID, &a.EmailType, &payload, &a.Status, &a.AttemptCount, &a.LastError, &nextAttempt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan email attempt: %w", err)
		}
		a.Payload = json.RawMessage(payload)
		if nextAttempt.Valid {
			t := nextAttempt.Time
			a.NextAttemptAt = &t
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate email attempts: %w", err)
	}
	return attempts, nil
}

func (el *PostgresEmailLedger) MarkRedispatched(ctx context.Context, orderID, emailType string) error {
	_, err := el.db.ExecContext(ctx, `
		UPDATE email_send_attempts
		SET status = $3, next_attempt_at = NULL, updated_at = $4
		WHERE order_id = $1 AND email_type = $2
	`, orderID, emailType, EmailStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark email redispatched %s/%s: %w", orderID, emailType, err)
	}
	return nil
}

func (el *PostgresEmailLedger) setStatus(ctx context.Context, orderID, emailType, status string) error {
	_, err := el.db.ExecContext(ctx, `
		UPDATE email_send_attempts
		SET status = $3, updated_at = $4
		WHERE order_id = $1 AND email_type = $2
	`, orderID, emailType, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set email attempt %s/%s to %s: %w", orderID, emailType, status, err)
	}
	return nil
}
