// Package keys derives the composite keys used by the archive and the event
// index. Every function here is pure: the same input always gives the same
// key, which is what makes replayed writes land on the same object and item.
package keys

import (
	"strings"
	"time"
)

const (
	ApplicationEntity = "APPLICATION"
	CaseworkerEntity  = "CASEWORKER"

	// GlobalPK is the single partition of the chronological timeline index.
	GlobalPK = "event"

	separator = "#"

	// Fixed width, so that lexical order of rendered instants is chronological.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

// PK builds a partition key: lowercase entity type, '#', entity id.
func PK(entityType, entityID string) string {
	return strings.ToLower(entityType) + separator + entityID
}

// SK builds a sort key from an event type and the instant it happened.
// For one event type, SK(t1) < SK(t2) iff t1 is before t2.
func SK(eventType string, ts time.Time) string {
	return TypePrefix(eventType) + Timestamp(ts)
}

// EventSK is SK suffixed with the event id, so two events of the same type
// recorded at the same instant never share a sort key.
func EventSK(eventType string, ts time.Time, eventID string) string {
	return SK(eventType, ts) + separator + eventID
}

// TypePrefix is the begins_with filter matching every sort key of eventType.
func TypePrefix(eventType string) string {
	return eventType + separator
}

func Timestamp(ts time.Time) string {
	return ts.UTC().Format(timestampLayout)
}

func CaseworkerPK(caseworkerID string) string {
	return PK(CaseworkerEntity, caseworkerID)
}

func GlobalSK(ts time.Time, eventID string) string {
	return Timestamp(ts) + separator + eventID
}

// ArchiveKey is the object key an event's payload is archived under.
func ArchiveKey(applicationID, eventType, eventID string) string {
	return "events/" + strings.ToLower(ApplicationEntity) + "/" + applicationID + "/" + eventType + "/" + eventID + ".json"
}
