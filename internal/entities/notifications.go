package entities

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Event interface {
	IsInternal() bool
}

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return NewEventHeaderWithIdempotencyKey(uuid.NewString())
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// EventsPublished_v1 tells readers which domain events became available in
// the archive and the index.
type EventsPublished_v1 struct {
	Header EventHeader `json:"header"`

	EventIDs []uuid.UUID `json:"event_ids"`
	Count    int         `json:"count"`
}

func (e EventsPublished_v1) IsInternal() bool {
	return false
}

// NewEventsPublished derives the idempotency key from the set of ids, so a
// notification re-sent for the same batch is recognisable downstream.
func NewEventsPublished(ids []uuid.UUID) *EventsPublished_v1 {
	sorted := make([]string, len(ids))
	for i, id := range ids {
		sorted[i] = id.String()
	}
	sort.Strings(sorted)

	key := uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(sorted, ","))).String()

	return &EventsPublished_v1{
		Header:   NewEventHeaderWithIdempotencyKey(key),
		EventIDs: ids,
		Count:    len(ids),
	}
}
