package projections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/shopspring/decimal"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/config"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/eventstore"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
)

// LedgerDocument is the searchable view of a partner's day
type LedgerDocument struct {
	domain.LedgerState
	AggregateID string    `json:"aggregate_id"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventDocument is one ledger event as indexed for the dashboards
type EventDocument struct {
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	Type        string          `json:"type"`
	Version     int             `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
	DeliveryID  string          `json:"delivery_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Data        interface{}     `json:"data"`
}

// LedgerProjector indexes ledger state, ledger events and the deliveries they touch
type LedgerProjector struct {
	elasticClient *elasticsearch.Client
	events        eventstore.EventStore
	repo          repository.Repository
	cfg           config.Config
}

// NewLedgerProjector creates a new ledger projector
func NewLedgerProjector(elasticClient *elasticsearch.Client, events eventstore.EventStore, repo repository.Repository, cfg config.Config) *LedgerProjector {
	return &LedgerProjector{
		elasticClient: elasticClient,
		events:        events,
		repo:          repo,
		cfg:           cfg,
	}
}

// Project projects an event
func (p *LedgerProjector) Project(ctx context.Context, event domain.Event) error {
	if err := p.projectEvent(ctx, event); err != nil {
		return err
	}
	if err := p.projectLedger(ctx, event.AggregateID); err != nil {
		return err
	}

	switch data := event.Data.(type) {
	case domain.DeliveryCompletedEvent:
		return p.projectDelivery(ctx, data.DeliveryID)
	case domain.DeliveryCancelledEvent:
		return p.projectDelivery(ctx, data.DeliveryID)
	default:
		return nil
	}
}

func (p *LedgerProjector) projectEvent(ctx context.Context, event domain.Event) error {
	doc := EventDocument{
		EventID:     event.ID,
		AggregateID: event.AggregateID,
		Type:        event.Type,
		Version:     event.Version,
		Timestamp:   event.Timestamp,
		Data:        event.Data,
	}

	switch data := event.Data.(type) {
	case domain.AllocationGrantedEvent:
		doc.Quantity = data.Allocated
	case domain.DeliveryCompletedEvent:
		doc.DeliveryID = data.DeliveryID
		doc.Quantity = data.Quantity
	case domain.DeliveryCancelledEvent:
		doc.DeliveryID = data.DeliveryID
	}

	return indexDocument(ctx, p.elasticClient, config.FormatIndex(p.cfg, LedgerEventsIndex), event.ID, doc)
}

// projectLedger replays the whole day so the document always reflects the reduced state
func (p *LedgerProjector) projectLedger(ctx context.Context, aggregateID string) error {
	events, err := p.events.GetEvents(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("failed to get ledger events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	partnerID, date, err := parseLedgerID(aggregateID)
	if err != nil {
		return err
	}
	ledger := domain.NewLedgerAggregate(partnerID, date)
	for _, event := range events {
		if err := ledger.Replay(event); err != nil {
			return err
		}
	}

	doc := LedgerDocument{
		LedgerState: ledger.State,
		AggregateID: aggregateID,
		Version:     ledger.GetVersion(),
		UpdatedAt:   events[len(events)-1].Timestamp,
	}
	return indexDocument(ctx, p.elasticClient, config.FormatIndex(p.cfg, LedgersIndex), aggregateID, doc)
}

func (p *LedgerProjector) projectDelivery(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return nil
	}

	delivery, err := p.repo.GetDelivery(ctx, deliveryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get delivery: %w", err)
	}

	return indexDocument(ctx, p.elasticClient, config.FormatIndex(p.cfg, DeliveriesIndex), delivery.ID, delivery)
}

// parseLedgerID splits "ledger:<partner>:<date>". Partner ids may contain colons.
func parseLedgerID(aggregateID string) (string, string, error) {
	const prefix = "ledger:"
	if len(aggregateID) <= len(prefix)+len(domain.DateLayout)+1 || aggregateID[:len(prefix)] != prefix {
		return "", "", fmt.Errorf("invalid ledger id %q", aggregateID)
	}

	date := aggregateID[len(aggregateID)-len(domain.DateLayout):]
	partnerID := aggregateID[len(prefix) : len(aggregateID)-len(domain.DateLayout)-1]
	if domain.LedgerID(partnerID, date) != aggregateID {
		return "", "", fmt.Errorf("invalid ledger id %q", aggregateID)
	}
	return partnerID, date, nil
}
