// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/errors"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Migrate creates the tables the state API needs when they do not exist.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// GetDB returns the underlying *sql.DB for compatibility
func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS application_states (
		id              UUID PRIMARY KEY,
		session_id      VARCHAR(255) NOT NULL UNIQUE,
		channel         VARCHAR(32)  NOT NULL,
		user_identifier VARCHAR(255) NOT NULL,
		current_step    VARCHAR(100) NOT NULL,
		form_data       JSONB        NOT NULL DEFAULT '{}'::jsonb,
		metadata        JSONB        NOT NULL DEFAULT '{}'::jsonb,
		reference_code  VARCHAR(32),
		expires_at      TIMESTAMPTZ  NOT NULL,
		created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_application_states_user
		ON application_states (user_identifier, channel, expires_at DESC)`,
	`ALTER TABLE application_states ADD COLUMN IF NOT EXISTS reference_code VARCHAR(32)`,
	`CREATE INDEX IF NOT EXISTS idx_application_states_reference
		ON application_states (reference_code, expires_at DESC)`,
	`CREATE TABLE IF NOT EXISTS state_transitions (
		id              BIGSERIAL PRIMARY KEY,
		state_id        UUID         NOT NULL,
		from_step       VARCHAR(100),
		to_step         VARCHAR(100) NOT NULL,
		channel         VARCHAR(32)  NOT NULL,
		transition_data JSONB        NOT NULL DEFAULT '{}'::jsonb,
		created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_state_transitions_state
		ON state_transitions (state_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id             UUID PRIMARY KEY,
		session_id     VARCHAR(255) NOT NULL UNIQUE,
		reference_code VARCHAR(32)  NOT NULL UNIQUE,
		form_type      VARCHAR(64)  NOT NULL,
		form_id        VARCHAR(64)  NOT NULL,
		variant        VARCHAR(32)  NOT NULL,
		submission     JSONB        NOT NULL,
		status         VARCHAR(32)  NOT NULL,
		submitted_at   TIMESTAMPTZ  NOT NULL,
		created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id            BIGSERIAL PRIMARY KEY,
		event_type    VARCHAR(64)  NOT NULL,
		resource_type VARCHAR(64)  NOT NULL,
		resource_id   VARCHAR(255) NOT NULL,
		details       JSONB        NOT NULL DEFAULT '{}'::jsonb,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
}
