package repository

import (
	"context"
	"errors"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// Common repository errors
var (
	ErrNotFound = errors.New("record not found")
)

// Table names shared by the remote schema and the local cache keys
const (
	TableDeliveryPartners    = "delivery_partners"
	TableCustomers           = "customers"
	TableDailyAllocations    = "daily_allocations"
	TableDeliveries          = "deliveries"
	TableCustomerAssignments = "customer_assignments"
	TablePickupLogs          = "pickup_logs"
)

// DeliveryFilter narrows ListDeliveries. Empty fields match everything.
type DeliveryFilter struct {
	PartnerID  string
	CustomerID string
	Date       string
	Status     domain.DeliveryStatus
	Key        string
}

// Matches reports whether a delivery satisfies the filter
func (f DeliveryFilter) Matches(d models.Delivery) bool {
	return (f.PartnerID == "" || d.DeliveryPartnerID == f.PartnerID) &&
		(f.CustomerID == "" || d.CustomerID == f.CustomerID) &&
		(f.Date == "" || d.Date == f.Date) &&
		(f.Status == "" || d.Status == f.Status) &&
		(f.Key == "" || d.DeliveryKey == f.Key)
}

// Repository is the storage the reconciliation engine reads and writes
type Repository interface {
	GetDeliveryPartner(ctx context.Context, id string) (*models.DeliveryPartner, error)
	ListDeliveryPartners(ctx context.Context) ([]models.DeliveryPartner, error)
	SaveDeliveryPartner(ctx context.Context, partner *models.DeliveryPartner) error

	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListCustomersByIDs(ctx context.Context, ids []string) ([]models.Customer, error)
	SaveCustomer(ctx context.Context, customer *models.Customer) error

	// InsertDailyAllocation appends a row; allocations are never replaced
	InsertDailyAllocation(ctx context.Context, allocation *models.DailyAllocation) error
	UpdateDailyAllocation(ctx context.Context, allocation *models.DailyAllocation) error
	// ListDailyAllocations returns a partner's rows for a day ordered by CreatedAt
	ListDailyAllocations(ctx context.Context, partnerID, date string) ([]models.DailyAllocation, error)

	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]models.Delivery, error)
	UpsertDelivery(ctx context.Context, delivery *models.Delivery) error

	// ReplaceCustomerAssignments deletes all of a partner's assignments and inserts the given set
	ReplaceCustomerAssignments(ctx context.Context, partnerID string, assignments []models.CustomerAssignment) error
	ListCustomerAssignments(ctx context.Context, partnerID string) ([]models.CustomerAssignment, error)

	InsertPickupLog(ctx context.Context, pickup *models.PickupLog) error
}
