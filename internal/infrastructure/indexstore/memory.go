package indexstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/index"
)

// MemoryStore is an in process index table with the same key schema and
// secondary indexes as the DynamoDB table.
type MemoryStore struct {
	lock    sync.RWMutex
	records map[string]entities.EventIndexRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]entities.EventIndexRecord{}}
}

func (s *MemoryStore) Put(ctx context.Context, record entities.EventIndexRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.records[record.PK+"|"+record.SK] = record

	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q index.Query) ([]entities.EventIndexRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keyOf, err := keyAttributes(q.Index)
	if err != nil {
		return nil, err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	var found []entities.EventIndexRecord
	for _, record := range s.records {
		pk, sk := keyOf(record)
		if pk == "" || pk != q.PartitionKey {
			continue
		}
		if q.SortKeyPrefix != "" && !strings.HasPrefix(sk, q.SortKeyPrefix) {
			continue
		}
		if q.SortKeyFrom != "" && sk < q.SortKeyFrom {
			continue
		}
		found = append(found, record)
	}

	sort.Slice(found, func(a, b int) bool {
		_, skA := keyOf(found[a])
		_, skB := keyOf(found[b])
		return skA < skB
	})

	if q.Limit > 0 && len(found) > q.Limit {
		found = found[:q.Limit]
	}

	return found, nil
}

// Len is the number of distinct (pk, sk) items stored.
func (s *MemoryStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.records)
}

func keyAttributes(name index.IndexName) (func(entities.EventIndexRecord) (string, string), error) {
	switch name {
	case index.PrimaryIndex:
		return func(r entities.EventIndexRecord) (string, string) { return r.PK, r.SK }, nil
	case index.CaseworkerIndex:
		return func(r entities.EventIndexRecord) (string, string) { return r.GS1PK, r.GS1SK }, nil
	case index.TimelineIndex:
		return func(r entities.EventIndexRecord) (string, string) { return r.GS2PK, r.GS2SK }, nil
	default:
		return nil, fmt.Errorf("unknown index %q", name)
	}
}
