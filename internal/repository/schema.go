package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// InitializeDBSchema creates the tables this service reads and writes when
// they are missing. domain_events belongs to the system of record; it is
// only created here so local and test databases work out of the box.
func InitializeDBSchema(db *sqlx.DB) error {
	_, err := db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS domain_events (
	id UUID PRIMARY KEY,
	application_id UUID NOT NULL,
	caseworker_id UUID,
	event_type VARCHAR(100) NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	created_by VARCHAR(255),
	is_published BOOLEAN NOT NULL DEFAULT false
);
CREATE INDEX IF NOT EXISTS domain_events_unpublished_idx
	ON domain_events (created_at, id) WHERE is_published = false;`)
	if err != nil {
		return fmt.Errorf("failed to create domain_events table: %w", err)
	}

	_, err = db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS domain_event_publication_attempts (
	event_id UUID PRIMARY KEY,
	attempts INTEGER NOT NULL,
	last_stage VARCHAR(50) NOT NULL,
	last_error TEXT NOT NULL,
	last_attempt_at TIMESTAMP WITH TIME ZONE NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("failed to create domain_event_publication_attempts table: %w", err)
	}

	_, err = db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS event_archive (
	bucket VARCHAR(255) NOT NULL,
	object_key VARCHAR(1024) NOT NULL,
	body BYTEA NOT NULL,
	content_type VARCHAR(255) NOT NULL,
	etag CHAR(32) NOT NULL,
	stored_at TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (bucket, object_key)
);`)
	if err != nil {
		return fmt.Errorf("failed to create event_archive table: %w", err)
	}

	return nil
}
