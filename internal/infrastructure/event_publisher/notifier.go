package event_publisher

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
)

type EventBus interface {
	Publish(ctx context.Context, event any) error
}

// PublicationNotifier announces batches of freshly published domain events.
type PublicationNotifier struct {
	bus EventBus
}

func NewPublicationNotifier(bus EventBus) *PublicationNotifier {
	if bus == nil {
		panic("missing event bus")
	}

	return &PublicationNotifier{bus: bus}
}

func (n *PublicationNotifier) NotifyPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	event := entities.NewEventsPublished(ids)
	if err := n.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish EventsPublished_v1: %w", err)
	}

	log.FromContext(ctx).
		WithField("count", event.Count).
		WithField("idempotency_key", event.Header.IdempotencyKey).
		Debug("Publication notification sent")

	return nil
}
