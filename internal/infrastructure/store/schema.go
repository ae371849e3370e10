package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create every table the system persists. All statements
// are idempotent so binaries can run them at boot; schema evolution beyond
// that is out of scope.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS domain_events (
		id             TEXT PRIMARY KEY,
		aggregate_id   TEXT        NOT NULL,
		aggregate_type TEXT        NOT NULL,
		event_type     TEXT        NOT NULL,
		payload        JSONB       NOT NULL,
		version        INTEGER     NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		CONSTRAINT domain_events_aggregate_version UNIQUE (aggregate_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_domain_events_created_at ON domain_events (created_at)`,

	`CREATE TABLE IF NOT EXISTS products_rm (
		id           TEXT PRIMARY KEY,
		name         TEXT        NOT NULL,
		description  TEXT        NOT NULL DEFAULT '',
		price        BIGINT      NOT NULL,
		category_id  TEXT,
		stock        INTEGER     NOT NULL DEFAULT 0,
		stock_status TEXT        NOT NULL,
		status       TEXT        NOT NULL,
		image_urls   JSONB       NOT NULL DEFAULT '[]',
		version      INTEGER     NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_rm_category ON products_rm (category_id)`,

	`CREATE TABLE IF NOT EXISTS categories_rm (
		id         TEXT PRIMARY KEY,
		name       TEXT        NOT NULL,
		slug       TEXT        NOT NULL UNIQUE,
		parent_id  TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS orders_rm (
		id                      TEXT PRIMARY KEY,
		customer_id             TEXT        NOT NULL,
		items                   JSONB       NOT NULL,
		shipping_address        JSONB       NOT NULL,
		payment_method          TEXT        NOT NULL,
		subtotal                BIGINT      NOT NULL,
		shipping_fee            BIGINT      NOT NULL,
		total                   BIGINT      NOT NULL,
		status                  TEXT        NOT NULL,
		transaction_id          TEXT,
		payment_code            TEXT,
		payment_code_expires_at TIMESTAMPTZ,
		created_at              TIMESTAMPTZ NOT NULL,
		updated_at              TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_rm_customer ON orders_rm (customer_id)`,

	`CREATE TABLE IF NOT EXISTS users (
		id                    TEXT PRIMARY KEY,
		email                 TEXT        NOT NULL UNIQUE,
		password_hash         TEXT        NOT NULL,
		name                  TEXT        NOT NULL,
		role                  TEXT        NOT NULL,
		email_verified        BOOLEAN     NOT NULL DEFAULT FALSE,
		failed_login_attempts INTEGER     NOT NULL DEFAULT 0,
		locked_until          TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS addresses (
		id          TEXT PRIMARY KEY,
		user_id     TEXT        NOT NULL,
		name        TEXT        NOT NULL,
		postal_code TEXT        NOT NULL,
		prefecture  TEXT        NOT NULL,
		city        TEXT        NOT NULL,
		line1       TEXT        NOT NULL,
		line2       TEXT,
		phone       TEXT        NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_addresses_user ON addresses (user_id)`,

	`CREATE TABLE IF NOT EXISTS wishlists (
		user_id    TEXT        NOT NULL,
		product_id TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, product_id)
	)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id    TEXT        NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`,

	`CREATE TABLE IF NOT EXISTS password_reset_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id    TEXT        NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		used       BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_verification_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id    TEXT        NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		used       BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_send_attempts (
		order_id        TEXT        NOT NULL,
		email_type      TEXT        NOT NULL,
		payload         JSONB       NOT NULL,
		status          TEXT        NOT NULL,
		attempt_count   INTEGER     NOT NULL DEFAULT 0,
		last_error      TEXT,
		next_attempt_at TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (order_id, email_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_send_attempts_due ON email_send_attempts (status, next_attempt_at)`,
}

// InitSchema creates all tables and indexes when they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
