package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
)

// DeliveryPartner represents a delivery partner in the database.
// DailyAllocation and RemainingQuantity mirror today's effective allocation.
type DeliveryPartner struct {
	ID                string          `gorm:"primaryKey" json:"id"`
	SupplierID        string          `gorm:"index" json:"supplier_id"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone"`
	Status            string          `json:"status"`
	AssignedCustomers []string        `gorm:"serializer:json" json:"assigned_customers"`
	DailyAllocation   decimal.Decimal `gorm:"type:numeric(12,2)" json:"daily_allocation"`
	RemainingQuantity decimal.Decimal `gorm:"type:numeric(12,2)" json:"remaining_quantity"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Customer represents a customer in the database
type Customer struct {
	ID            string          `gorm:"primaryKey" json:"id"`
	SupplierID    string          `gorm:"index" json:"supplier_id"`
	Name          string          `json:"name"`
	Address       string          `json:"address"`
	DailyQuantity decimal.Decimal `gorm:"type:numeric(12,2)" json:"daily_quantity"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DailyAllocation is one append-only allocation row for a partner's day
type DailyAllocation struct {
	ID                string                  `gorm:"primaryKey" json:"id"`
	SupplierID        string                  `gorm:"index" json:"supplier_id"`
	DeliveryPartnerID string                  `gorm:"index:idx_allocation_partner_date" json:"delivery_partner_id"`
	Date              string                  `gorm:"index:idx_allocation_partner_date" json:"date"`
	AllocatedQuantity decimal.Decimal         `gorm:"type:numeric(12,2)" json:"allocated_quantity"`
	RemainingQuantity decimal.Decimal         `gorm:"type:numeric(12,2)" json:"remaining_quantity"`
	Status            domain.AllocationStatus `json:"status"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// Delivery represents one delivery to a customer
type Delivery struct {
	ID                string                `gorm:"primaryKey" json:"id"`
	DeliveryKey       string                `gorm:"index" json:"delivery_key"`
	CustomerID        string                `gorm:"index" json:"customer_id"`
	DeliveryPartnerID string                `gorm:"index:idx_delivery_partner_date" json:"delivery_partner_id"`
	SupplierID        string                `json:"supplier_id"`
	Date              string                `gorm:"index:idx_delivery_partner_date" json:"date"`
	Quantity          decimal.Decimal       `gorm:"type:numeric(12,2)" json:"quantity"`
	SuggestedQuantity decimal.Decimal       `gorm:"type:numeric(12,2)" json:"suggested_quantity"`
	Status            domain.DeliveryStatus `gorm:"index" json:"status"`
	ScheduledTime     time.Time             `json:"scheduled_time"`
	CompletedTime     *time.Time            `json:"completed_time,omitempty"`
	Notes             string                `json:"notes,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// CustomerAssignment links a customer to the partner delivering to them
type CustomerAssignment struct {
	ID                string    `gorm:"primaryKey" json:"id"`
	DeliveryPartnerID string    `gorm:"index" json:"delivery_partner_id"`
	CustomerID        string    `gorm:"index" json:"customer_id"`
	AssignedAt        time.Time `json:"assigned_at"`
}

// PickupLog records milk collected from a farmer by a delivery partner
type PickupLog struct {
	ID                string          `gorm:"primaryKey" json:"id"`
	DeliveryPartnerID string          `gorm:"index" json:"delivery_partner_id"`
	SupplierID        string          `gorm:"index" json:"supplier_id"`
	FarmerID          string          `json:"farmer_id"`
	Date              string          `gorm:"index" json:"date"`
	Quantity          decimal.Decimal `gorm:"type:numeric(12,2)" json:"quantity"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Key returns the composite key of the delivery
func (d Delivery) Key() domain.DeliveryKey {
	return domain.DeliveryKey{CustomerID: d.CustomerID, PartnerID: d.DeliveryPartnerID, Date: d.Date}
}

// EffectiveAllocation returns the allocation with the latest CreatedAt.
// On equal timestamps the later row in the slice wins.
func EffectiveAllocation(rows []DailyAllocation) (DailyAllocation, bool) {
	var (
		effective DailyAllocation
		found     bool
	)
	for _, row := range rows {
		if !found || !row.CreatedAt.Before(effective.CreatedAt) {
			effective = row
			found = true
		}
	}
	return effective, found
}

// Tables returns every model the service persists, in migration order
func Tables() []interface{} {
	return []interface{}{
		&DeliveryPartner{},
		&Customer{},
		&DailyAllocation{},
		&Delivery{},
		&CustomerAssignment{},
		&PickupLog{},
		&Event{},
	}
}
