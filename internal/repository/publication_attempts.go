package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
)

// RecordFailures bumps the attempt counter of every failed event and returns
// the counters after the update.
func (r *DomainEventsRepo) RecordFailures(ctx context.Context, failures []entities.PublicationFailure) (map[uuid.UUID]int, error) {
	if len(failures) == 0 {
		return map[uuid.UUID]int{}, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	attempts := make(map[uuid.UUID]int, len(failures))
	for _, f := range failures {
		var n int
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO domain_event_publication_attempts (event_id, attempts, last_stage, last_error, last_attempt_at)
			VALUES ($1, 1, $2, $3, now())
			ON CONFLICT (event_id) DO UPDATE
			SET attempts = domain_event_publication_attempts.attempts + 1,
			    last_stage = EXCLUDED.last_stage,
			    last_error = EXCLUDED.last_error,
			    last_attempt_at = EXCLUDED.last_attempt_at
			RETURNING attempts
		`, f.EventID, f.Stage, f.Reason).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("record publication failure of %s: %w", f.EventID, err)
		}
		attempts[f.EventID] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return attempts, nil
}

// ClearAttempts forgets the failure history of events that got published.
func (r *DomainEventsRepo) ClearAttempts(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM domain_event_publication_attempts WHERE event_id = ANY($1::uuid[])
	`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return fmt.Errorf("clear publication attempts: %w", err)
	}

	return nil
}
