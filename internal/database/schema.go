package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates the tables the ledger writes to. Events are
// owned by event management upstream; the table is still created here so
// a fresh local database is immediately usable.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		registered_count INTEGER NOT NULL DEFAULT 0,
		CONSTRAINT registered_count_non_negative CHECK (registered_count >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS event_registrations (
		event_id UUID NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_registration_history (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS event_registration_history_pair_idx
		ON event_registration_history (event_id, user_id)`,
}

// EnsureSchema creates the registration tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
