package eventstore

import (
	"context"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
)

// EventStore is the interface for event storage
type EventStore interface {
	// Save saves an aggregate's events to the store
	Save(ctx context.Context, aggregate domain.Aggregate) error

	// Load replays an aggregate from the store
	Load(ctx context.Context, aggregate domain.Aggregate) error

	// Exists checks if an aggregate exists
	Exists(ctx context.Context, aggregateID string) (bool, error)

	// GetEvents gets all events for an aggregate
	GetEvents(ctx context.Context, aggregateID string) ([]domain.Event, error)

	// GetUnprocessedEvents gets the oldest events not yet projected
	GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error)

	// MarkEventAsProcessed marks an event as processed
	MarkEventAsProcessed(ctx context.Context, eventID string) error
}

func replay(aggregate domain.Aggregate, events []domain.Event) error {
	for _, event := range events {
		if err := aggregate.Replay(event); err != nil {
			return err
		}
	}
	aggregate.ClearEvents()
	return nil
}
