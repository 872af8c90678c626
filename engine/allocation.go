package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
)

// AddDailyAllocation appends a new allocation row for a partner's day and
// generates deliveries for the partner's assigned customers.
func (e *Engine) AddDailyAllocation(ctx context.Context, cmd AddDailyAllocationCommand) (*AllocationResult, error) {
	log.Info().
		Str("partnerID", cmd.PartnerID).
		Str("date", cmd.Date).
		Str("allocated", cmd.AllocatedQuantity.String()).
		Msg("Handling AddDailyAllocation command")

	if err := validate(cmd); err != nil {
		return nil, err
	}
	if cmd.AllocatedQuantity.IsNegative() {
		return nil, fmt.Errorf("%w: allocated quantity cannot be negative", ErrValidation)
	}
	if cmd.RemainingQuantity != nil && cmd.RemainingQuantity.IsNegative() {
		return nil, fmt.Errorf("%w: remaining quantity cannot be negative", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.addAllocation(ctx, cmd, domain.SourceSupplier)
}

func (e *Engine) addAllocation(ctx context.Context, cmd AddDailyAllocationCommand, source string) (*AllocationResult, error) {
	rows, err := e.repo.ListDailyAllocations(ctx, cmd.PartnerID, cmd.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily allocations: %w", err)
	}
	ledger := e.loadLedger(ctx, cmd.PartnerID, cmd.Date, rows)

	remaining := cmd.AllocatedQuantity
	if cmd.RemainingQuantity != nil {
		remaining = *cmd.RemainingQuantity
	}
	status := cmd.Status
	if status == "" {
		status = domain.AllocationStatusAllocated
	}

	now := e.now()
	allocation := models.DailyAllocation{
		ID:                uuid.New().String(),
		SupplierID:        cmd.SupplierID,
		DeliveryPartnerID: cmd.PartnerID,
		Date:              cmd.Date,
		AllocatedQuantity: cmd.AllocatedQuantity,
		RemainingQuantity: remaining,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := e.repo.InsertDailyAllocation(ctx, &allocation); err != nil {
		return nil, fmt.Errorf("failed to insert daily allocation: %w", err)
	}

	if err := ledger.Apply(grantFor(allocation, source)); err != nil {
		return nil, fmt.Errorf("failed to apply event: %w", err)
	}
	e.saveLedger(ctx, ledger)

	if err := e.refreshPartner(ctx, allocation); err != nil {
		return nil, err
	}

	deliveries, err := e.generateDeliveries(ctx, allocation)
	if err != nil {
		return nil, err
	}

	return &AllocationResult{Allocation: allocation, Deliveries: deliveries}, nil
}

// GenerateDeliveriesFromAllocation creates one pending delivery per customer
// assigned to the allocation's partner.
func (e *Engine) GenerateDeliveriesFromAllocation(ctx context.Context, allocation models.DailyAllocation) ([]models.Delivery, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.generateDeliveries(ctx, allocation)
}

func (e *Engine) generateDeliveries(ctx context.Context, allocation models.DailyAllocation) ([]models.Delivery, error) {
	partner, err := e.repo.GetDeliveryPartner(ctx, allocation.DeliveryPartnerID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("partnerID", allocation.DeliveryPartnerID).Msg("Unknown delivery partner, no deliveries generated")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery partner: %w", err)
	}
	if len(partner.AssignedCustomers) == 0 {
		return nil, nil
	}

	customers, err := e.repo.ListCustomersByIDs(ctx, partner.AssignedCustomers)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	byID := make(map[string]models.Customer, len(customers))
	for _, customer := range customers {
		byID[customer.ID] = customer
	}

	existing := map[string]bool{}
	if e.opts.DedupeDeliveries {
		current, err := e.repo.ListDeliveries(ctx, repository.DeliveryFilter{
			PartnerID: allocation.DeliveryPartnerID,
			Date:      allocation.Date,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list deliveries: %w", err)
		}
		for _, delivery := range current {
			existing[delivery.Key().String()] = true
		}
	}

	now := e.now()
	var deliveries []models.Delivery
	for _, customerID := range partner.AssignedCustomers {
		customer, ok := byID[customerID]
		if !ok {
			log.Warn().Str("customerID", customerID).Msg("Assigned customer not found, skipping delivery")
			continue
		}

		key := domain.DeliveryKey{CustomerID: customerID, PartnerID: allocation.DeliveryPartnerID, Date: allocation.Date}
		if existing[key.String()] {
			continue
		}

		delivery := models.Delivery{
			ID:                uuid.New().String(),
			DeliveryKey:       key.String(),
			CustomerID:        customerID,
			DeliveryPartnerID: allocation.DeliveryPartnerID,
			SupplierID:        allocation.SupplierID,
			Date:              allocation.Date,
			Quantity:          customer.DailyQuantity,
			SuggestedQuantity: customer.DailyQuantity,
			Status:            domain.DeliveryStatusPending,
			ScheduledTime:     now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := e.repo.UpsertDelivery(ctx, &delivery); err != nil {
			return deliveries, fmt.Errorf("failed to save delivery: %w", err)
		}
		if e.opts.DedupeDeliveries {
			existing[key.String()] = true
		}
		deliveries = append(deliveries, delivery)
	}

	log.Info().
		Str("partnerID", allocation.DeliveryPartnerID).
		Str("date", allocation.Date).
		Int("count", len(deliveries)).
		Msg("Deliveries generated")

	return deliveries, nil
}

// EffectiveAllocation resolves the allocation in force for a partner's day
func (e *Engine) EffectiveAllocation(ctx context.Context, partnerID, date string) (*models.DailyAllocation, error) {
	rows, err := e.repo.ListDailyAllocations(ctx, partnerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily allocations: %w", err)
	}

	effective, ok := models.EffectiveAllocation(rows)
	if !ok {
		return nil, fmt.Errorf("no allocation for %s on %s: %w", partnerID, date, repository.ErrNotFound)
	}
	return &effective, nil
}

// RecordPickup logs milk collected from a farmer and raises the partner's
// allocation for the day by the same quantity.
func (e *Engine) RecordPickup(ctx context.Context, cmd RecordPickupCommand) (*AllocationResult, error) {
	log.Info().
		Str("partnerID", cmd.PartnerID).
		Str("farmerID", cmd.FarmerID).
		Str("quantity", cmd.Quantity.String()).
		Msg("Handling RecordPickup command")

	if err := validate(cmd); err != nil {
		return nil, err
	}
	if cmd.Quantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: pickup quantity must be positive", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	pickup := models.PickupLog{
		ID:                uuid.New().String(),
		DeliveryPartnerID: cmd.PartnerID,
		SupplierID:        cmd.SupplierID,
		FarmerID:          cmd.FarmerID,
		Date:              cmd.Date,
		Quantity:          cmd.Quantity,
		CreatedAt:         now,
	}
	if err := e.repo.InsertPickupLog(ctx, &pickup); err != nil {
		return nil, fmt.Errorf("failed to insert pickup log: %w", err)
	}

	rows, err := e.repo.ListDailyAllocations(ctx, cmd.PartnerID, cmd.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily allocations: %w", err)
	}

	allocated := cmd.Quantity
	remaining := cmd.Quantity
	status := domain.AllocationStatusAllocated
	if effective, ok := models.EffectiveAllocation(rows); ok {
		allocated = effective.AllocatedQuantity.Add(cmd.Quantity)
		remaining = effective.RemainingQuantity.Add(cmd.Quantity)
		if effective.Status != domain.AllocationStatusAllocated && effective.Status != "" {
			status = domain.AllocationStatusInProgress
		}
	}

	return e.addAllocation(ctx, AddDailyAllocationCommand{
		PartnerID:         cmd.PartnerID,
		SupplierID:        cmd.SupplierID,
		Date:              cmd.Date,
		AllocatedQuantity: allocated,
		RemainingQuantity: &remaining,
		Status:            status,
	}, domain.SourcePickup)
}
