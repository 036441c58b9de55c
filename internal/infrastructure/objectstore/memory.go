package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/archive"
)

type object struct {
	body        []byte
	contentType string
	etag        string
}

// MemoryStore keeps objects in process memory. Used in tests and local runs.
type MemoryStore struct {
	lock    sync.RWMutex
	objects map[string]object
	puts    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]object{}}
}

func (s *MemoryStore) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	etag := ETag(body)
	s.objects[bucket+"/"+key] = object{
		body:        append([]byte(nil), body...),
		contentType: contentType,
		etag:        etag,
	}
	s.puts++

	return etag, nil
}

func (s *MemoryStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	obj, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, archive.ErrObjectNotFound
	}

	return append([]byte(nil), obj.body...), nil
}

func (s *MemoryStore) ObjectURL(bucket, key string) string {
	return "mem://" + bucket + "/" + key
}

func (s *MemoryStore) ContentType(bucket, key string) string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.objects[bucket+"/"+key].contentType
}

// Len is the number of distinct objects stored.
func (s *MemoryStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.objects)
}

// Puts is the number of PutObject calls that succeeded.
func (s *MemoryStore) Puts() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.puts
}

// ETag mirrors S3's ETag for single part uploads: hex md5 of the body.
func ETag(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}
