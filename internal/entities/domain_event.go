package entities

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventApplicationCreated       EventType = "APPLICATION_CREATED"
	EventApplicationUpdated       EventType = "APPLICATION_UPDATED"
	EventAssignedToCaseworker     EventType = "ASSIGN_APPLICATION_TO_CASEWORKER"
	EventUnassignedFromCaseworker EventType = "UNASSIGN_APPLICATION_TO_CASEWORKER"
	EventDecisionMade             EventType = "APPLICATION_MAKE_DECISION"
	EventNoteAdded                EventType = "APPLICATION_NOTE_ADDED"
)

var eventDescriptions = map[EventType]string{
	EventApplicationCreated:       "Application created",
	EventApplicationUpdated:       "Application updated",
	EventAssignedToCaseworker:     "Application assigned to caseworker",
	EventUnassignedFromCaseworker: "Application unassigned from caseworker",
	EventDecisionMade:             "Decision made on application",
	EventNoteAdded:                "Note added to application",
}

// Description is the human readable summary stored on index records.
// Types unknown to this service describe themselves by name.
func (t EventType) Description() string {
	if d, ok := eventDescriptions[t]; ok {
		return d
	}
	return string(t)
}

// DomainEvent is a business event recorded by the system of record.
// This service only ever flips Published from false to true.
type DomainEvent struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ApplicationID uuid.UUID  `db:"application_id" json:"application_id"`
	CaseworkerID  *uuid.UUID `db:"caseworker_id" json:"caseworker_id,omitempty"`
	EventType     EventType  `db:"event_type" json:"event_type"`
	Payload       []byte     `db:"payload" json:"payload"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	CreatedBy     *string    `db:"created_by" json:"created_by,omitempty"`
	Published     bool       `db:"is_published" json:"is_published"`
}
