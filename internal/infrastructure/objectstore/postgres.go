package objectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/archive"
)

// PostgresStore keeps archived payloads in a postgres table. It stands in
// for the bucket in development environments without S3.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	etag := ETag(body)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_archive (bucket, object_key, body, content_type, etag, stored_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (bucket, object_key) DO UPDATE
		SET body = EXCLUDED.body,
		    content_type = EXCLUDED.content_type,
		    etag = EXCLUDED.etag,
		    stored_at = EXCLUDED.stored_at
	`, bucket, key, body, contentType, etag)
	if err != nil {
		return "", fmt.Errorf("insert archived object: %w", err)
	}

	return etag, nil
}

func (s *PostgresStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	var body []byte

	err := s.db.GetContext(ctx, &body, `
		SELECT body FROM event_archive WHERE bucket = $1 AND object_key = $2
	`, bucket, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archive.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select archived object: %w", err)
	}

	return body, nil
}

func (s *PostgresStore) ObjectURL(bucket, key string) string {
	return "postgres://event_archive/" + bucket + "/" + key
}
