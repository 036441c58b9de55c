package entities

import "time"

// EventIndexRecord is the item written to the event index table.
//
// pk/sk group an application's events and order them by type and time,
// gs1 re-keys them by caseworker and gs2 holds the global timeline.
type EventIndexRecord struct {
	PK    string `dynamodbav:"pk" json:"pk"`
	SK    string `dynamodbav:"sk" json:"sk"`
	GS1PK string `dynamodbav:"gs1pk,omitempty" json:"gs1pk,omitempty"`
	GS1SK string `dynamodbav:"gs1sk,omitempty" json:"gs1sk,omitempty"`
	GS2PK string `dynamodbav:"gs2pk" json:"gs2pk"`
	GS2SK string `dynamodbav:"gs2sk" json:"gs2sk"`

	EventType       EventType `dynamodbav:"eventType" json:"event_type"`
	CreatedAt       time.Time `dynamodbav:"createdAt" json:"created_at"`
	Description     string    `dynamodbav:"description" json:"description"`
	ApplicationID   string    `dynamodbav:"applicationId" json:"application_id"`
	CaseworkerID    string    `dynamodbav:"caseworkerId,omitempty" json:"caseworker_id,omitempty"`
	ArchiveLocation string    `dynamodbav:"archiveLocation" json:"archive_location"`
}
