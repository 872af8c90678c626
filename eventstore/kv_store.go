package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/cache"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// EventsKey is the cache key holding the serialized event log
const EventsKey = "events"

// KVEventStore keeps the whole event log under one key of a KeyValueStore.
// It backs local-only mode and tests.
type KVEventStore struct {
	mu    sync.Mutex
	store cache.KeyValueStore
	clock func() time.Time
}

// NewKVEventStore creates an event store on top of a key/value store
func NewKVEventStore(store cache.KeyValueStore) *KVEventStore {
	return &KVEventStore{store: store, clock: time.Now}
}

func (s *KVEventStore) read(ctx context.Context) ([]models.Event, error) {
	raw, ok, err := s.store.Get(ctx, EventsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var events []models.Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("failed to decode event log: %w", err)
	}
	return events, nil
}

func (s *KVEventStore) write(ctx context.Context, events []models.Event) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode event log: %w", err)
	}
	return s.store.Set(ctx, EventsKey, string(raw))
}

// Save appends an aggregate's uncommitted events to the log
func (s *KVEventStore) Save(ctx context.Context, aggregate domain.Aggregate) error {
	pending := aggregate.GetEvents()
	if len(pending) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.read(ctx)
	if err != nil {
		return err
	}

	now := s.clock()
	for _, event := range pending {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		events = append(events, models.Event{
			ID:            uint(len(events) + 1),
			EventID:       uuid.New().String(),
			AggregateID:   event.AggregateID,
			AggregateType: event.AggregateType,
			EventType:     event.Type,
			Data:          data,
			Version:       event.Version,
			Timestamp:     event.Timestamp,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := s.write(ctx, events); err != nil {
		return err
	}
	aggregate.ClearEvents()
	return nil
}

// Load replays an aggregate from the log
func (s *KVEventStore) Load(ctx context.Context, aggregate domain.Aggregate) error {
	if aggregate.GetID() == "" {
		return fmt.Errorf("aggregate ID is empty")
	}

	events, err := s.GetEvents(ctx, aggregate.GetID())
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	return replay(aggregate, events)
}

// Exists checks if an aggregate has any events
func (s *KVEventStore) Exists(ctx context.Context, aggregateID string) (bool, error) {
	events, err := s.GetEvents(ctx, aggregateID)
	if err != nil {
		return false, err
	}
	return len(events) > 0, nil
}

// GetEvents gets all events for an aggregate ordered by version
func (s *KVEventStore) GetEvents(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	s.mu.Lock()
	stored, err := s.read(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var matching []models.Event
	for _, event := range stored {
		if event.AggregateID == aggregateID {
			matching = append(matching, event)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Version < matching[j].Version
	})

	return toDomainEvents(matching)
}

// GetUnprocessedEvents gets the oldest unprocessed events
func (s *KVEventStore) GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	stored, err := s.read(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var pending []models.Event
	for _, event := range stored {
		if !event.Processed {
			pending = append(pending, event)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Timestamp.Before(pending[j].Timestamp)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	return toDomainEvents(pending)
}

// MarkEventAsProcessed marks an event as processed
func (s *KVEventStore) MarkEventAsProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.read(ctx)
	if err != nil {
		return err
	}

	for i := range events {
		if events[i].EventID == eventID {
			events[i].Processed = true
			events[i].UpdatedAt = s.clock()
			return s.write(ctx, events)
		}
	}

	return fmt.Errorf("event %s not found", eventID)
}
