package domain

import (
	"fmt"
	"time"
)

// AggregateBase provides common aggregate functionality
type AggregateBase struct {
	id            string
	aggregateType string
	version       int
	events        []Event
	applier       func(event interface{}) error
	clock         func() time.Time
}

// Aggregate is the interface for all aggregates
type Aggregate interface {
	GetID() string
	GetType() string
	GetVersion() int
	GetEvents() []Event
	ClearEvents()
	Apply(event interface{}) error
	Replay(event Event) error
}

// NewAggregateBase creates a new aggregate base
func NewAggregateBase(id, aggregateType string, applier func(interface{}) error) *AggregateBase {
	return &AggregateBase{
		id:            id,
		aggregateType: aggregateType,
		events:        []Event{},
		applier:       applier,
		clock:         time.Now,
	}
}

// GetID returns the aggregate ID
func (a *AggregateBase) GetID() string {
	return a.id
}

// GetType returns the aggregate type
func (a *AggregateBase) GetType() string {
	return a.aggregateType
}

// GetVersion returns the aggregate version
func (a *AggregateBase) GetVersion() int {
	return a.version
}

// GetEvents returns the uncommitted events
func (a *AggregateBase) GetEvents() []Event {
	return a.events
}

// ClearEvents clears the uncommitted events
func (a *AggregateBase) ClearEvents() {
	a.events = []Event{}
}

// SetClock overrides the time source used to stamp new events.
func (a *AggregateBase) SetClock(clock func() time.Time) {
	if clock != nil {
		a.clock = clock
	}
}

// Apply applies an event to the aggregate and records it as uncommitted
func (a *AggregateBase) Apply(event interface{}) error {
	if a.applier == nil {
		return fmt.Errorf("applier is not set")
	}

	eventType, err := TypeOf(event)
	if err != nil {
		return err
	}

	if err := a.applier(event); err != nil {
		return fmt.Errorf("failed to apply event: %w", err)
	}

	a.events = append(a.events, Event{
		AggregateID:   a.id,
		AggregateType: a.aggregateType,
		Type:          eventType,
		Version:       a.version + 1,
		Timestamp:     a.clock(),
		Data:          event,
	})
	a.version++

	return nil
}

// Replay applies a stored event without recording it as uncommitted.
func (a *AggregateBase) Replay(event Event) error {
	if a.applier == nil {
		return fmt.Errorf("applier is not set")
	}

	if err := a.applier(event.Data); err != nil {
		return fmt.Errorf("failed to replay event %s: %w", event.Type, err)
	}
	a.version = event.Version

	return nil
}
