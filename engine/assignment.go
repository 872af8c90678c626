package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// AssignCustomersToPartner replaces a partner's whole assignment set.
// Deliveries already generated for dropped customers are left as they are.
func (e *Engine) AssignCustomersToPartner(ctx context.Context, cmd AssignCustomersCommand) (*models.DeliveryPartner, error) {
	log.Info().
		Str("partnerID", cmd.PartnerID).
		Int("customers", len(cmd.CustomerIDs)).
		Msg("Handling AssignCustomers command")

	if err := validate(cmd); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	partner, err := e.repo.GetDeliveryPartner(ctx, cmd.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery partner: %w", err)
	}

	now := e.now()
	seen := make(map[string]bool, len(cmd.CustomerIDs))
	customerIDs := make([]string, 0, len(cmd.CustomerIDs))
	assignments := make([]models.CustomerAssignment, 0, len(cmd.CustomerIDs))
	for _, customerID := range cmd.CustomerIDs {
		if seen[customerID] {
			continue
		}
		seen[customerID] = true
		customerIDs = append(customerIDs, customerID)
		assignments = append(assignments, models.CustomerAssignment{
			ID:                uuid.New().String(),
			DeliveryPartnerID: cmd.PartnerID,
			CustomerID:        customerID,
			AssignedAt:        now,
		})
	}

	if err := e.repo.ReplaceCustomerAssignments(ctx, cmd.PartnerID, assignments); err != nil {
		return nil, fmt.Errorf("failed to replace customer assignments: %w", err)
	}

	partner.AssignedCustomers = customerIDs
	partner.UpdatedAt = now
	if err := e.repo.SaveDeliveryPartner(ctx, partner); err != nil {
		return nil, fmt.Errorf("failed to save delivery partner: %w", err)
	}

	return partner, nil
}
