package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
)

type DomainEventsRepo struct {
	db *sqlx.DB
}

func NewDomainEventsRepo(db *sqlx.DB) *DomainEventsRepo {
	return &DomainEventsRepo{db: db}
}

// FindUnpublished returns up to limit unpublished events, oldest first.
func (r *DomainEventsRepo) FindUnpublished(ctx context.Context, limit int) ([]entities.DomainEvent, error) {
	if limit <= 0 {
		return nil, nil
	}

	var events []entities.DomainEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, application_id, caseworker_id, event_type, payload, created_at, created_by, is_published
		FROM domain_events
		WHERE is_published = false
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select unpublished domain events: %w", err)
	}

	return events, nil
}

// MarkPublished flips the published flag of the given events and returns how
// many rows actually changed. Already published events are not counted.
func (r *DomainEventsRepo) MarkPublished(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE domain_events
		SET is_published = true
		WHERE id = ANY($1::uuid[]) AND is_published = false
	`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return 0, fmt.Errorf("mark domain events published: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(affected), nil
}

// Add stores a new event. The system of record normally does this in the
// same transaction as the business change; here it serves seeding and tests.
func (r *DomainEventsRepo) Add(ctx context.Context, event entities.DomainEvent) error {
	// payload goes as text: lib/pq would send []byte as bytea
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO domain_events (id, application_id, caseworker_id, event_type, payload, created_at, created_by, is_published)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`,
		event.ID,
		event.ApplicationID,
		event.CaseworkerID,
		event.EventType,
		string(event.Payload),
		event.CreatedAt,
		event.CreatedBy,
		event.Published,
	)
	if err != nil {
		return fmt.Errorf("insert domain event: %w", err)
	}

	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
