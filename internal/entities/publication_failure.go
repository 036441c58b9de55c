package entities

import "github.com/google/uuid"

type PublicationFailure struct {
	EventID uuid.UUID
	Stage   string
	Reason  string
}
