package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// GormEventStore implements EventStore using GORM
type GormEventStore struct {
	db *gorm.DB
}

// NewGormEventStore creates a new GORM event store
func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

// Save saves an aggregate's events to the store
func (s *GormEventStore) Save(ctx context.Context, aggregate domain.Aggregate) error {
	events := aggregate.GetEvents()
	if len(events) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, event := range events {
			data, err := json.Marshal(event.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal event data: %w", err)
			}

			dbEvent := models.Event{
				EventID:       uuid.New().String(),
				AggregateID:   event.AggregateID,
				AggregateType: event.AggregateType,
				EventType:     event.Type,
				Data:          data,
				Version:       event.Version,
				Timestamp:     event.Timestamp,
				Processed:     false,
			}

			if err := tx.Create(&dbEvent).Error; err != nil {
				return fmt.Errorf("failed to save event: %w", err)
			}

			log.Debug().
				Str("aggregateID", event.AggregateID).
				Str("eventType", event.Type).
				Int("version", event.Version).
				Msg("Event saved")
		}

		aggregate.ClearEvents()
		return nil
	})
}

// Load loads an aggregate from the store
func (s *GormEventStore) Load(ctx context.Context, aggregate domain.Aggregate) error {
	aggregateID := aggregate.GetID()
	if aggregateID == "" {
		return fmt.Errorf("aggregate ID is empty")
	}

	events, err := s.GetEvents(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	return replay(aggregate, events)
}

// Exists checks if an aggregate exists
func (s *GormEventStore) Exists(ctx context.Context, aggregateID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("aggregate_id = ?", aggregateID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check if aggregate exists: %w", err)
	}

	return count > 0, nil
}

// GetEvents gets all events for an aggregate
func (s *GormEventStore) GetEvents(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	var dbEvents []models.Event
	if err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("version ASC").
		Find(&dbEvents).Error; err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	return toDomainEvents(dbEvents)
}

// GetUnprocessedEvents gets the oldest unprocessed events
func (s *GormEventStore) GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	var dbEvents []models.Event
	if err := s.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("timestamp ASC").
		Limit(limit).
		Find(&dbEvents).Error; err != nil {
		return nil, fmt.Errorf("failed to get unprocessed events: %w", err)
	}

	return toDomainEvents(dbEvents)
}

// MarkEventAsProcessed marks an event as processed
func (s *GormEventStore) MarkEventAsProcessed(ctx context.Context, eventID string) error {
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":  true,
			"error":      nil,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	return nil
}

func toDomainEvents(dbEvents []models.Event) ([]domain.Event, error) {
	events := make([]domain.Event, len(dbEvents))
	for i, dbEvent := range dbEvents {
		data, err := domain.DecodeEvent(dbEvent.EventType, dbEvent.Data)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", dbEvent.EventID, err)
		}
		events[i] = domain.Event{
			ID:            dbEvent.EventID,
			AggregateID:   dbEvent.AggregateID,
			AggregateType: dbEvent.AggregateType,
			Type:          dbEvent.EventType,
			Version:       dbEvent.Version,
			Timestamp:     dbEvent.Timestamp,
			Data:          data,
		}
	}
	return events, nil
}
