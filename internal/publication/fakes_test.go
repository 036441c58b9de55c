package publication_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/archive"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/index"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/infrastructure/indexstore"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/infrastructure/objectstore"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/publication"
)

const testBucket = "domain-events"

var errStoreDown = errors.New("store unavailable")

// eventSource is an in memory domain_events table that also keeps failure
// counters.
type eventSource struct {
	lock sync.Mutex

	events    []entities.DomainEvent
	markCalls [][]uuid.UUID
	attempts  map[uuid.UUID]int
	cleared   []uuid.UUID
}

func newEventSource(events ...entities.DomainEvent) *eventSource {
	return &eventSource{
		events:   events,
		attempts: map[uuid.UUID]int{},
	}
}

func (s *eventSource) FindUnpublished(_ context.Context, limit int) ([]entities.DomainEvent, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var found []entities.DomainEvent
	for _, e := range s.events {
		if !e.Published {
			found = append(found, e)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].CreatedAt.Before(found[j].CreatedAt)
	})

	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (s *eventSource) MarkPublished(_ context.Context, ids []uuid.UUID) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.markCalls = append(s.markCalls, append([]uuid.UUID(nil), ids...))

	marked := 0
	for _, id := range ids {
		for i := range s.events {
			if s.events[i].ID == id && !s.events[i].Published {
				s.events[i].Published = true
				marked++
			}
		}
	}
	return marked, nil
}

func (s *eventSource) RecordFailures(_ context.Context, failures []entities.PublicationFailure) (map[uuid.UUID]int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := map[uuid.UUID]int{}
	for _, f := range failures {
		s.attempts[f.EventID]++
		out[f.EventID] = s.attempts[f.EventID]
	}
	return out, nil
}

func (s *eventSource) ClearAttempts(_ context.Context, ids []uuid.UUID) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, id := range ids {
		delete(s.attempts, id)
	}
	s.cleared = append(s.cleared, ids...)
	return nil
}

func (s *eventSource) MarkCalls() [][]uuid.UUID {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([][]uuid.UUID(nil), s.markCalls...)
}

func (s *eventSource) Attempts(id uuid.UUID) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.attempts[id]
}

// objectStore fails uploads of chosen events, or of all of them.
type objectStore struct {
	*objectstore.MemoryStore

	lock    sync.Mutex
	failAll bool
	failing map[string]struct{}
	block   map[string]struct{}
}

func newObjectStore() *objectStore {
	return &objectStore{
		MemoryStore: objectstore.NewMemoryStore(),
		failing:     map[string]struct{}{},
		block:       map[string]struct{}{},
	}
}

func (s *objectStore) FailFor(ids ...uuid.UUID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, id := range ids {
		s.failing[id.String()] = struct{}{}
	}
}

// BlockFor makes uploads of the events hang until their context is done.
func (s *objectStore) BlockFor(ids ...uuid.UUID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, id := range ids {
		s.block[id.String()] = struct{}{}
	}
}

func (s *objectStore) SetDown(down bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.failAll = down
}

func (s *objectStore) Heal() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.failAll = false
	s.failing = map[string]struct{}{}
	s.block = map[string]struct{}{}
}

func (s *objectStore) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	if s.matches(key, true) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.matches(key, false) {
		return "", errStoreDown
	}
	return s.MemoryStore.PutObject(ctx, bucket, key, body, contentType)
}

func (s *objectStore) matches(key string, blocking bool) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	set := s.failing
	if blocking {
		set = s.block
	} else if s.failAll {
		return true
	}

	for id := range set {
		if strings.Contains(key, id) {
			return true
		}
	}
	return false
}

// indexStore counts writes and fails or panics for chosen events.
type indexStore struct {
	*indexstore.MemoryStore

	puts atomic.Int32

	lock    sync.Mutex
	failing map[string]struct{}
	panics  map[string]struct{}
}

func newIndexStore() *indexStore {
	return &indexStore{
		MemoryStore: indexstore.NewMemoryStore(),
		failing:     map[string]struct{}{},
		panics:      map[string]struct{}{},
	}
}

func (s *indexStore) FailFor(ids ...uuid.UUID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, id := range ids {
		s.failing[id.String()] = struct{}{}
	}
}

func (s *indexStore) PanicFor(ids ...uuid.UUID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, id := range ids {
		s.panics[id.String()] = struct{}{}
	}
}

func (s *indexStore) Put(ctx context.Context, record entities.EventIndexRecord) error {
	s.puts.Add(1)

	s.lock.Lock()
	_, fail := s.failing[eventIDOf(record)]
	_, panics := s.panics[eventIDOf(record)]
	s.lock.Unlock()

	if panics {
		panic("index store exploded")
	}
	if fail {
		return errStoreDown
	}
	return s.MemoryStore.Put(ctx, record)
}

func eventIDOf(record entities.EventIndexRecord) string {
	parts := strings.Split(record.SK, "#")
	return parts[len(parts)-1]
}

type pipeline struct {
	source  *eventSource
	objects *objectStore
	index   *indexStore
	indexer *index.Indexer
}

func newPipeline(events ...entities.DomainEvent) pipeline {
	return pipeline{
		source:  newEventSource(events...),
		objects: newObjectStore(),
		index:   newIndexStore(),
	}
}

func (p *pipeline) coordinator(t *testing.T, config publication.Config, opts ...publication.Option) *publication.Coordinator {
	t.Helper()

	p.indexer = index.NewIndexer(p.index, time.Second)
	c, err := publication.NewCoordinator(
		p.source,
		archive.NewArchiver(p.objects, time.Second),
		p.indexer,
		config,
		opts...,
	)
	require.NoError(t, err)

	return c
}

func defaultConfig() publication.Config {
	return publication.Config{
		Bucket:          testBucket,
		BatchSize:       10,
		Concurrency:     4,
		StageTimeout:    time.Second,
		PoisonThreshold: 3,
	}
}

func newEvents(n int, applicationID uuid.UUID) []entities.DomainEvent {
	caseworkerID := uuid.New()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	events := make([]entities.DomainEvent, n)
	for i := range events {
		events[i] = entities.DomainEvent{
			ID:            uuid.New(),
			ApplicationID: applicationID,
			CaseworkerID:  &caseworkerID,
			EventType:     entities.EventApplicationUpdated,
			Payload:       []byte(`{"version":` + string(rune('0'+i%10)) + `}`),
			CreatedAt:     start.Add(time.Duration(i) * time.Minute),
		}
	}
	return events
}

func ids(events ...entities.DomainEvent) []uuid.UUID {
	out := make([]uuid.UUID, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func counterValue(t *testing.T, name string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
