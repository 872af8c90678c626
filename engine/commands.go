package engine

import (
	"github.com/shopspring/decimal"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// Command structs
type AddDailyAllocationCommand struct {
	PartnerID         string                  `json:"delivery_partner_id" validate:"required"`
	SupplierID        string                  `json:"supplier_id" validate:"required"`
	Date              string                  `json:"date" validate:"required,day"`
	AllocatedQuantity decimal.Decimal         `json:"allocated_quantity" validate:"gte=0"`
	RemainingQuantity *decimal.Decimal        `json:"remaining_quantity,omitempty"`
	Status            domain.AllocationStatus `json:"status,omitempty" validate:"omitempty,oneof=allocated in_progress completed"`
}

type UpdateDeliveryStatusCommand struct {
	DeliveryID string                `json:"delivery_id" validate:"required_without=Key"`
	Key        *domain.DeliveryKey   `json:"key,omitempty"`
	Status     domain.DeliveryStatus `json:"status" validate:"required,oneof=completed cancelled"`
	Notes      string                `json:"notes,omitempty"`
	Quantity   *decimal.Decimal      `json:"quantity,omitempty"`
}

type AssignCustomersCommand struct {
	PartnerID   string   `json:"delivery_partner_id" validate:"required"`
	CustomerIDs []string `json:"customer_ids" validate:"dive,required"`
}

type RecordPickupCommand struct {
	PartnerID  string          `json:"delivery_partner_id" validate:"required"`
	SupplierID string          `json:"supplier_id" validate:"required"`
	FarmerID   string          `json:"farmer_id" validate:"required"`
	Date       string          `json:"date" validate:"required,day"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// AllocationResult is the appended allocation row and the deliveries it generated
type AllocationResult struct {
	Allocation models.DailyAllocation `json:"allocation"`
	Deliveries []models.Delivery      `json:"deliveries"`
}
