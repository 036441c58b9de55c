// Package index maintains the event index: one record per published domain
// event, reachable by application, by caseworker and through the global
// timeline.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/keys"
)

var ErrArchiveNotStored = errors.New("event payload is not archived")

type IndexName string

const (
	PrimaryIndex    IndexName = ""
	CaseworkerIndex IndexName = "gs1"
	TimelineIndex   IndexName = "gs2"
)

// Query selects records of one partition of an index, in ascending sort
// key order. SortKeyPrefix and SortKeyFrom are mutually exclusive.
type Query struct {
	Index         IndexName
	PartitionKey  string
	SortKeyPrefix string
	SortKeyFrom   string
	Limit         int
}

type Store interface {
	// Put replaces the record stored under the same (pk, sk).
	Put(ctx context.Context, record entities.EventIndexRecord) error
	Query(ctx context.Context, q Query) ([]entities.EventIndexRecord, error)
}

type Indexer struct {
	store   Store
	timeout time.Duration
}

func NewIndexer(store Store, timeout time.Duration) *Indexer {
	if store == nil {
		panic("missing index store")
	}

	return &Indexer{
		store:   store,
		timeout: timeout,
	}
}

// NewRecord builds the index record of an archived event. Identical input
// gives an identical record, so re-indexing an event overwrites its own row.
func NewRecord(event entities.DomainEvent, location entities.ArchiveLocation) entities.EventIndexRecord {
	eventID := event.ID.String()
	sk := keys.EventSK(string(event.EventType), event.CreatedAt, eventID)

	record := entities.EventIndexRecord{
		PK:              keys.PK(keys.ApplicationEntity, event.ApplicationID.String()),
		SK:              sk,
		GS2PK:           keys.GlobalPK,
		GS2SK:           keys.GlobalSK(event.CreatedAt, eventID),
		EventType:       event.EventType,
		CreatedAt:       event.CreatedAt.UTC(),
		Description:     event.EventType.Description(),
		ApplicationID:   event.ApplicationID.String(),
		ArchiveLocation: location.URL,
	}

	if event.CaseworkerID != nil {
		record.CaseworkerID = event.CaseworkerID.String()
		record.GS1PK = keys.CaseworkerPK(record.CaseworkerID)
		record.GS1SK = sk
	}

	return record
}

// Index writes the record of an event whose payload was archived and
// returns exactly what was written.
func (i *Indexer) Index(ctx context.Context, event entities.DomainEvent, location entities.ArchiveLocation) (entities.EventIndexRecord, error) {
	if !location.Success {
		return entities.EventIndexRecord{}, fmt.Errorf("%w: event %s", ErrArchiveNotStored, event.ID)
	}

	record := NewRecord(event, location)

	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	if err := i.store.Put(ctx, record); err != nil {
		return entities.EventIndexRecord{}, fmt.Errorf("put index record of event %s: %w", event.ID, err)
	}

	return record, nil
}

func (i *Indexer) GetByApplication(ctx context.Context, applicationID uuid.UUID) ([]entities.EventIndexRecord, error) {
	return i.query(ctx, Query{
		PartitionKey: keys.PK(keys.ApplicationEntity, applicationID.String()),
	})
}

// GetByApplicationAndTypes returns the application's events of the given
// types, ordered by sort key. No types means all of them.
func (i *Indexer) GetByApplicationAndTypes(ctx context.Context, applicationID uuid.UUID, types ...entities.EventType) ([]entities.EventIndexRecord, error) {
	if len(types) == 0 {
		return i.GetByApplication(ctx, applicationID)
	}

	seen := map[entities.EventType]struct{}{}
	var records []entities.EventIndexRecord

	for _, eventType := range types {
		if _, ok := seen[eventType]; ok {
			continue
		}
		seen[eventType] = struct{}{}

		found, err := i.query(ctx, Query{
			PartitionKey:  keys.PK(keys.ApplicationEntity, applicationID.String()),
			SortKeyPrefix: keys.TypePrefix(string(eventType)),
		})
		if err != nil {
			return nil, err
		}
		records = append(records, found...)
	}

	sort.Slice(records, func(a, b int) bool {
		return records[a].SK < records[b].SK
	})

	return records, nil
}

// GetByCaseworker returns events recorded against a caseworker across all
// applications, optionally only of one type.
func (i *Indexer) GetByCaseworker(ctx context.Context, caseworkerID uuid.UUID, eventType *entities.EventType) ([]entities.EventIndexRecord, error) {
	q := Query{
		Index:        CaseworkerIndex,
		PartitionKey: keys.CaseworkerPK(caseworkerID.String()),
	}
	if eventType != nil {
		q.SortKeyPrefix = keys.TypePrefix(string(*eventType))
	}

	return i.query(ctx, q)
}

// GetTimeline returns events created at or after since, oldest first.
func (i *Indexer) GetTimeline(ctx context.Context, since time.Time, limit int) ([]entities.EventIndexRecord, error) {
	return i.query(ctx, Query{
		Index:        TimelineIndex,
		PartitionKey: keys.GlobalPK,
		SortKeyFrom:  keys.Timestamp(since),
		Limit:        limit,
	})
}

func (i *Indexer) query(ctx context.Context, q Query) ([]entities.EventIndexRecord, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	records, err := i.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query index %q partition %s: %w", q.Index, q.PartitionKey, err)
	}

	return records, nil
}

func (i *Indexer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, i.timeout)
}
