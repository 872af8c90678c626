package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/eventstore"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/utils"
)

// ErrValidation wraps every rejected command
var ErrValidation = errors.New("validation failed")

// Options tunes the engine
type Options struct {
	// DedupeDeliveries skips customers that already have a delivery for the partner and day
	DedupeDeliveries bool
	// Clock overrides time.Now
	Clock func() time.Time
}

// Engine reconciles daily allocations with the deliveries made against them.
// Operations are serialized; each one is a sequence of repository writes
// followed by an append to the partner's day ledger.
type Engine struct {
	mu     sync.Mutex
	repo   repository.Repository
	events eventstore.EventStore
	opts   Options
	now    func() time.Time
}

// New creates an engine over a repository and a ledger event store
func New(repo repository.Repository, events eventstore.EventStore, opts Options) *Engine {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		repo:   repo,
		events: events,
		opts:   opts,
		now:    now,
	}
}

func validate(cmd interface{}) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (e *Engine) today() string {
	return domain.FormatDate(e.now())
}

// loadLedger replays a partner's day and brings it in line with the stored
// allocation rows. Rows written while the event store was unreachable, and
// remaining quantities whose events were lost, are granted again so the
// ledger never trails the effective allocation.
func (e *Engine) loadLedger(ctx context.Context, partnerID, date string, rows []models.DailyAllocation) *domain.LedgerAggregate {
	ledger := domain.NewLedgerAggregate(partnerID, date)
	ledger.SetClock(e.now)

	if err := e.events.Load(ctx, ledger); err != nil {
		log.Warn().Err(err).Str("aggregateID", ledger.GetID()).Msg("Failed to load ledger, rebuilding from allocation rows")
		ledger = domain.NewLedgerAggregate(partnerID, date)
		ledger.SetClock(e.now)
	}

	effective, ok := models.EffectiveAllocation(rows)
	if !ok {
		return ledger
	}

	source := domain.SourceSupplier
	if effective.ID == ledger.State.AllocationID {
		if effective.RemainingQuantity.Equal(ledger.State.Remaining) {
			return ledger
		}
		log.Warn().
			Str("aggregateID", ledger.GetID()).
			Str("ledgerRemaining", ledger.State.Remaining.String()).
			Str("rowRemaining", effective.RemainingQuantity.String()).
			Msg("Ledger out of step with allocation row, resyncing")
		source = domain.SourceResync
	} else if ledger.State.HasAllocation() && effective.CreatedAt.Before(ledger.State.EffectiveAt) {
		return ledger
	}

	if err := ledger.Apply(grantFor(effective, source)); err != nil {
		log.Error().Err(err).Str("aggregateID", ledger.GetID()).Msg("Failed to seed ledger")
	}
	return ledger
}

// saveLedger persists pending ledger events. The allocation rows stay the
// record of truth for reads, so a failed append is logged, not returned.
func (e *Engine) saveLedger(ctx context.Context, ledger *domain.LedgerAggregate) {
	if err := e.events.Save(ctx, ledger); err != nil {
		log.Error().Err(err).Str("aggregateID", ledger.GetID()).Msg("Failed to save ledger events")
	}
}

func grantFor(row models.DailyAllocation, source string) domain.AllocationGrantedEvent {
	return domain.AllocationGrantedEvent{
		AllocationID: row.ID,
		SupplierID:   row.SupplierID,
		Allocated:    row.AllocatedQuantity,
		Remaining:    row.RemainingQuantity,
		Status:       row.Status,
		CreatedAt:    row.CreatedAt,
		Source:       source,
	}
}

// refreshPartner copies today's effective allocation onto the partner row
func (e *Engine) refreshPartner(ctx context.Context, allocation models.DailyAllocation) error {
	if allocation.Date != e.today() {
		return nil
	}

	partner, err := e.repo.GetDeliveryPartner(ctx, allocation.DeliveryPartnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get delivery partner: %w", err)
	}

	partner.DailyAllocation = allocation.AllocatedQuantity
	partner.RemainingQuantity = allocation.RemainingQuantity
	partner.UpdatedAt = e.now()
	if err := e.repo.SaveDeliveryPartner(ctx, partner); err != nil {
		return fmt.Errorf("failed to save delivery partner: %w", err)
	}
	return nil
}

// GetDeliveryPartner gets a delivery partner by id
func (e *Engine) GetDeliveryPartner(ctx context.Context, id string) (*models.DeliveryPartner, error) {
	return e.repo.GetDeliveryPartner(ctx, id)
}

// SaveDeliveryPartner inserts a delivery partner or updates its profile fields.
// Assignments and the quantity projection of an existing partner are kept;
// they only change through AssignCustomersToPartner and allocation updates.
// On return partner holds the stored row.
func (e *Engine) SaveDeliveryPartner(ctx context.Context, partner *models.DeliveryPartner) error {
	if partner.ID == "" {
		return fmt.Errorf("%w: delivery partner id is required", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	existing, err := e.repo.GetDeliveryPartner(ctx, partner.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if partner.CreatedAt.IsZero() {
			partner.CreatedAt = now
		}
		partner.UpdatedAt = now
		return e.repo.SaveDeliveryPartner(ctx, partner)
	case err != nil:
		return fmt.Errorf("failed to get delivery partner: %w", err)
	}

	existing.SupplierID = partner.SupplierID
	existing.Name = partner.Name
	existing.Phone = partner.Phone
	existing.Status = partner.Status
	existing.UpdatedAt = now
	if err := e.repo.SaveDeliveryPartner(ctx, existing); err != nil {
		return err
	}

	*partner = *existing
	return nil
}

// SaveCustomer inserts or updates a customer
func (e *Engine) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == "" {
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if customer.DailyQuantity.IsNegative() {
		return fmt.Errorf("%w: daily quantity cannot be negative", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now
	return e.repo.SaveCustomer(ctx, customer)
}
