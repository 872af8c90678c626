package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
)

// UpdateDeliveryStatus moves a delivery to completed or cancelled.
// A delivery that was never generated is upserted under its composite key.
func (e *Engine) UpdateDeliveryStatus(ctx context.Context, cmd UpdateDeliveryStatusCommand) (*models.Delivery, error) {
	log.Info().
		Str("deliveryID", cmd.DeliveryID).
		Str("status", string(cmd.Status)).
		Msg("Handling UpdateDeliveryStatus command")

	if err := validate(cmd); err != nil {
		return nil, err
	}
	if cmd.Quantity != nil && cmd.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	delivery, err := e.resolveDelivery(ctx, cmd)
	if err != nil {
		return nil, err
	}

	previous := delivery.Status
	if err := domain.CheckTransition(previous, cmd.Status); err != nil {
		return nil, err
	}

	now := e.now()
	delivery.Status = cmd.Status
	delivery.UpdatedAt = now

	switch cmd.Status {
	case domain.DeliveryStatusCompleted:
		delivery.CompletedTime = &now
		if cmd.Quantity != nil {
			delivery.Quantity = *cmd.Quantity
		}
		if cmd.Notes != "" {
			delivery.Notes = cmd.Notes
		}
		if err := e.repo.UpsertDelivery(ctx, delivery); err != nil {
			return nil, fmt.Errorf("failed to save delivery: %w", err)
		}

		if previous == domain.DeliveryStatusCompleted {
			log.Warn().Str("deliveryID", delivery.ID).Msg("Delivery completed again, quantity deducted again")
		}
		completion := domain.DeliveryCompletedEvent{
			DeliveryID: delivery.ID,
			CustomerID: delivery.CustomerID,
			Quantity:   delivery.Quantity,
		}
		if _, err := e.updateRemaining(ctx, delivery.DeliveryPartnerID, delivery.Date, completion); err != nil {
			return nil, err
		}

	case domain.DeliveryStatusCancelled:
		delivery.Notes = cmd.Notes
		if err := e.repo.UpsertDelivery(ctx, delivery); err != nil {
			return nil, fmt.Errorf("failed to save delivery: %w", err)
		}
		if previous != domain.DeliveryStatusCancelled {
			e.recordCancellation(ctx, *delivery)
		}
	}

	return delivery, nil
}

// resolveDelivery finds the delivery a status update targets: by id, then by
// composite key, and finally by synthesizing one from the key.
func (e *Engine) resolveDelivery(ctx context.Context, cmd UpdateDeliveryStatusCommand) (*models.Delivery, error) {
	if cmd.DeliveryID != "" {
		delivery, err := e.repo.GetDelivery(ctx, cmd.DeliveryID)
		if err == nil {
			return delivery, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to get delivery: %w", err)
		}
	}

	var key domain.DeliveryKey
	if cmd.Key != nil {
		key = *cmd.Key
	} else {
		parsed, ok := domain.ParseDeliveryKey(cmd.DeliveryID)
		if !ok {
			return nil, fmt.Errorf("delivery %s: %w", cmd.DeliveryID, repository.ErrNotFound)
		}
		key = parsed
	}

	matches, err := e.repo.ListDeliveries(ctx, repository.DeliveryFilter{Key: key.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	if len(matches) > 0 {
		for i := range matches {
			if matches[i].Status == domain.DeliveryStatusPending {
				return &matches[i], nil
			}
		}
		return &matches[len(matches)-1], nil
	}

	return e.synthesizeDelivery(ctx, key)
}

func (e *Engine) synthesizeDelivery(ctx context.Context, key domain.DeliveryKey) (*models.Delivery, error) {
	quantity := decimal.Zero
	supplierID := ""

	customer, err := e.repo.GetCustomer(ctx, key.CustomerID)
	switch {
	case err == nil:
		quantity = customer.DailyQuantity
		supplierID = customer.SupplierID
	case errors.Is(err, repository.ErrNotFound):
		log.Warn().Str("customerID", key.CustomerID).Msg("Unknown customer, synthesized delivery has no default quantity")
	default:
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	log.Info().Str("deliveryKey", key.String()).Msg("Synthesizing missing delivery")

	now := e.now()
	return &models.Delivery{
		ID:                key.String(),
		DeliveryKey:       key.String(),
		CustomerID:        key.CustomerID,
		DeliveryPartnerID: key.PartnerID,
		SupplierID:        supplierID,
		Date:              key.Date,
		Quantity:          quantity,
		SuggestedQuantity: quantity,
		Status:            domain.DeliveryStatusPending,
		ScheduledTime:     now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (e *Engine) recordCancellation(ctx context.Context, delivery models.Delivery) {
	rows, err := e.repo.ListDailyAllocations(ctx, delivery.DeliveryPartnerID, delivery.Date)
	if err != nil {
		log.Warn().Err(err).Str("deliveryID", delivery.ID).Msg("Failed to list allocations for cancellation")
		return
	}

	ledger := e.loadLedger(ctx, delivery.DeliveryPartnerID, delivery.Date, rows)
	if err := ledger.Apply(domain.DeliveryCancelledEvent{
		DeliveryID: delivery.ID,
		CustomerID: delivery.CustomerID,
		Reason:     delivery.Notes,
	}); err != nil {
		log.Error().Err(err).Str("deliveryID", delivery.ID).Msg("Failed to apply cancellation")
		return
	}
	e.saveLedger(ctx, ledger)
}

// UpdateRemainingQuantity deducts delivered liters from a partner's
// effective allocation for the day. It returns nil when the day has no allocation.
func (e *Engine) UpdateRemainingQuantity(ctx context.Context, partnerID, date string, delivered decimal.Decimal) (*models.DailyAllocation, error) {
	if partnerID == "" {
		return nil, fmt.Errorf("%w: delivery partner id is required", ErrValidation)
	}
	if delivered.IsNegative() {
		return nil, fmt.Errorf("%w: delivered quantity cannot be negative", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.updateRemaining(ctx, partnerID, date, domain.DeliveryCompletedEvent{Quantity: delivered})
}

func (e *Engine) updateRemaining(ctx context.Context, partnerID, date string, completion domain.DeliveryCompletedEvent) (*models.DailyAllocation, error) {
	rows, err := e.repo.ListDailyAllocations(ctx, partnerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily allocations: %w", err)
	}

	effective, ok := models.EffectiveAllocation(rows)
	if !ok {
		log.Warn().Str("partnerID", partnerID).Str("date", date).Msg("No allocation to deduct from")
		return nil, nil
	}

	if completion.Quantity.GreaterThan(effective.RemainingQuantity) {
		log.Warn().
			Str("partnerID", partnerID).
			Str("remaining", effective.RemainingQuantity.String()).
			Str("delivered", completion.Quantity.String()).
			Msg("Delivered more than remaining, clamping at zero")
	}

	// The row is the record of truth; the ledger is resynced to it before the
	// completion is appended.
	ledger := e.loadLedger(ctx, partnerID, date, rows)
	if err := ledger.Apply(completion); err != nil {
		return nil, fmt.Errorf("failed to apply event: %w", err)
	}

	effective.RemainingQuantity = domain.Deduct(effective.RemainingQuantity, completion.Quantity)
	effective.Status = domain.StatusAfterDelivery(effective.RemainingQuantity)
	effective.UpdatedAt = e.now()
	if err := e.repo.UpdateDailyAllocation(ctx, &effective); err != nil {
		return nil, fmt.Errorf("failed to update daily allocation: %w", err)
	}
	e.saveLedger(ctx, ledger)

	if err := e.refreshPartner(ctx, effective); err != nil {
		return nil, err
	}

	return &effective, nil
}

// ListDeliveries lists deliveries matching the filter
func (e *Engine) ListDeliveries(ctx context.Context, filter repository.DeliveryFilter) ([]models.Delivery, error) {
	return e.repo.ListDeliveries(ctx, filter)
}
