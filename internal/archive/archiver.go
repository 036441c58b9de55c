package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
)

var (
	ErrUpload         = errors.New("archive upload failed")
	ErrObjectNotFound = errors.New("archived object not found")
)

type ObjectStore interface {
	// PutObject stores body under bucket/key, replacing what was there, and
	// returns the stored object's ETag.
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error)
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ObjectURL(bucket, key string) string
}

type Archiver struct {
	store   ObjectStore
	timeout time.Duration
}

func NewArchiver(store ObjectStore, timeout time.Duration) *Archiver {
	if store == nil {
		panic("missing object store")
	}

	return &Archiver{
		store:   store,
		timeout: timeout,
	}
}

// Upload archives payload under bucket/key. It never returns an error:
// failures come back as an ArchiveLocation with Success set to false.
// Uploading the same bytes to the same key again is safe.
func (a *Archiver) Upload(ctx context.Context, payload any, bucket, key string) entities.ArchiveLocation {
	location := entities.ArchiveLocation{
		Bucket: bucket,
		Key:    key,
	}

	body, err := Marshal(payload)
	if err != nil {
		location.Err = err
		return location
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	etag, err := a.store.PutObject(ctx, bucket, key, body, ContentType(body))
	if err != nil {
		location.Err = fmt.Errorf("%w: %s/%s: %w", ErrUpload, bucket, key, err)
		return location
	}

	location.ETag = etag
	location.URL = a.store.ObjectURL(bucket, key)
	location.Success = true

	log.FromContext(ctx).
		WithField("bucket", bucket).
		WithField("key", key).
		WithField("etag", etag).
		Debug("Payload archived")

	return location
}

func (a *Archiver) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	body, err := a.store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}

	return body, nil
}

func (a *Archiver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
