package archive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/archive"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/infrastructure/objectstore"
)

// blockingStore never answers before the caller gives up.
type blockingStore struct {
	*objectstore.MemoryStore
}

func (s blockingStore) PutObject(ctx context.Context, _, _ string, _ []byte, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type brokenStore struct {
	*objectstore.MemoryStore
}

func (brokenStore) PutObject(context.Context, string, string, []byte, string) (string, error) {
	return "", errors.New("503 slow down")
}

func TestArchiver_Upload(t *testing.T) {
	store := objectstore.NewMemoryStore()
	archiver := archive.NewArchiver(store, time.Second)
	ctx := context.Background()

	location := archiver.Upload(ctx, []byte(`{"status":"NEW"}`), "events-bucket", "events/application/a/APPLICATION_CREATED/e.json")

	require.True(t, location.Success)
	assert.NoError(t, location.Err)
	assert.Equal(t, "events-bucket", location.Bucket)
	assert.Equal(t, "events/application/a/APPLICATION_CREATED/e.json", location.Key)
	assert.Equal(t, objectstore.ETag([]byte(`{"status":"NEW"}`)), location.ETag)
	assert.Equal(t, "mem://events-bucket/events/application/a/APPLICATION_CREATED/e.json", location.URL)
	assert.Equal(t, archive.ContentTypeJSON, store.ContentType("events-bucket", location.Key))

	body, err := archiver.Download(ctx, "events-bucket", location.Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"NEW"}`, string(body))
}

func TestArchiver_Upload_is_idempotent(t *testing.T) {
	store := objectstore.NewMemoryStore()
	archiver := archive.NewArchiver(store, time.Second)
	ctx := context.Background()

	first := archiver.Upload(ctx, "same payload", "bucket", "key")
	second := archiver.Upload(ctx, "same payload", "bucket", "key")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 2, store.Puts())
}

func TestArchiver_Upload_store_failure_is_returned_as_data(t *testing.T) {
	archiver := archive.NewArchiver(brokenStore{objectstore.NewMemoryStore()}, time.Second)

	location := archiver.Upload(context.Background(), "payload", "bucket", "some/key")

	assert.False(t, location.Success)
	assert.Equal(t, "bucket", location.Bucket)
	assert.Equal(t, "some/key", location.Key)
	assert.Empty(t, location.ETag)
	assert.ErrorIs(t, location.Err, archive.ErrUpload)
}

func TestArchiver_Upload_timeout(t *testing.T) {
	archiver := archive.NewArchiver(blockingStore{objectstore.NewMemoryStore()}, 20*time.Millisecond)

	start := time.Now()
	location := archiver.Upload(context.Background(), "payload", "bucket", "key")

	assert.False(t, location.Success)
	assert.ErrorIs(t, location.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestArchiver_Upload_serialization_failure(t *testing.T) {
	store := objectstore.NewMemoryStore()
	archiver := archive.NewArchiver(store, time.Second)

	location := archiver.Upload(context.Background(), failingReader{}, "bucket", "key")

	assert.False(t, location.Success)
	assert.ErrorIs(t, location.Err, archive.ErrSerialization)
	assert.Zero(t, store.Len())
}

func TestArchiver_Download_missing_object(t *testing.T) {
	archiver := archive.NewArchiver(objectstore.NewMemoryStore(), time.Second)

	_, err := archiver.Download(context.Background(), "bucket", "missing")

	assert.ErrorIs(t, err, archive.ErrObjectNotFound)
}
