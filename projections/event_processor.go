package projections

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/config"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/eventstore"
)

// Projector projects a single stored event
type Projector interface {
	Project(ctx context.Context, event domain.Event) error
}

// EventProcessor processes events from the event store and projects them
type EventProcessor struct {
	eventStore         eventstore.EventStore
	ledgerProjector    Projector
	batchSize          int
	processingInterval time.Duration
	running            bool
	mutex              sync.Mutex
	stopChan           chan struct{}
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(eventStore eventstore.EventStore, ledgerProjector Projector, cfg config.WorkerConfig) *EventProcessor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	interval := cfg.ProcessingInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &EventProcessor{
		eventStore:         eventStore,
		ledgerProjector:    ledgerProjector,
		batchSize:          batchSize,
		processingInterval: interval,
		stopChan:           make(chan struct{}),
	}
}

// Start starts the event processor
func (p *EventProcessor) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.running {
		return
	}

	p.running = true
	go p.processEvents()
}

// Stop stops the event processor
func (p *EventProcessor) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.running {
		return
	}

	p.running = false
	p.stopChan <- struct{}{}
}

// processEvents processes events in a loop
func (p *EventProcessor) processEvents() {
	ticker := time.NewTicker(p.processingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessBatch(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to process event batch")
			}
		case <-p.stopChan:
			return
		}
	}
}

// ProcessBatch projects the oldest unprocessed events and returns how many succeeded.
// A failed event stays unprocessed and is retried on the next batch.
func (p *EventProcessor) ProcessBatch(ctx context.Context) (int, error) {
	events, err := p.eventStore.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	log.Info().Msgf("Processing %d events", len(events))

	processed := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to process event")
			continue
		}

		if err := p.eventStore.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to mark event as processed")
			continue
		}
		processed++
	}

	return processed, nil
}

// processEvent routes an event to the projector for its aggregate type
func (p *EventProcessor) processEvent(ctx context.Context, event domain.Event) error {
	switch event.AggregateType {
	case domain.LedgerAggregateType:
		return p.ledgerProjector.Project(ctx, event)
	default:
		log.Warn().Str("aggregate_type", event.AggregateType).Msg("Unknown aggregate type")
		return nil
	}
}
