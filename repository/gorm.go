package repository

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// GormRepository stores rows in the remote Postgres database
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository on a GORM connection
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(ErrNotFound, msg)
	}
	return pkgerrors.Wrap(err, msg)
}

// GetDeliveryPartner gets a delivery partner by id
func (r *GormRepository) GetDeliveryPartner(ctx context.Context, id string) (*models.DeliveryPartner, error) {
	var partner models.DeliveryPartner
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&partner).Error; err != nil {
		return nil, notFound(err, "failed to get delivery partner")
	}
	return &partner, nil
}

// ListDeliveryPartners lists all delivery partners
func (r *GormRepository) ListDeliveryPartners(ctx context.Context) ([]models.DeliveryPartner, error) {
	var partners []models.DeliveryPartner
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&partners).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list delivery partners")
	}
	return partners, nil
}

// SaveDeliveryPartner inserts or updates a delivery partner
func (r *GormRepository) SaveDeliveryPartner(ctx context.Context, partner *models.DeliveryPartner) error {
	if err := r.db.WithContext(ctx).Save(partner).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to save delivery partner")
	}
	return nil
}

// GetCustomer gets a customer by id
func (r *GormRepository) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, notFound(err, "failed to get customer")
	}
	return &customer, nil
}

// ListCustomersByIDs gets the customers with the given ids
func (r *GormRepository) ListCustomersByIDs(ctx context.Context, ids []string) ([]models.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var customers []models.Customer
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&customers).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list customers")
	}
	return customers, nil
}

// SaveCustomer inserts or updates a customer
func (r *GormRepository) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	if err := r.db.WithContext(ctx).Save(customer).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to save customer")
	}
	return nil
}

// InsertDailyAllocation appends an allocation row
func (r *GormRepository) InsertDailyAllocation(ctx context.Context, allocation *models.DailyAllocation) error {
	if err := r.db.WithContext(ctx).Create(allocation).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to insert daily allocation")
	}
	return nil
}

// UpdateDailyAllocation writes back remaining quantity and status
func (r *GormRepository) UpdateDailyAllocation(ctx context.Context, allocation *models.DailyAllocation) error {
	result := r.db.WithContext(ctx).
		Model(&models.DailyAllocation{}).
		Where("id = ?", allocation.ID).
		Updates(map[string]interface{}{
			"remaining_quantity": allocation.RemainingQuantity,
			"status":             allocation.Status,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(result.Error, "failed to update daily allocation")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.Wrap(ErrNotFound, "failed to update daily allocation")
	}
	return nil
}

// ListDailyAllocations lists a partner's allocation rows for a day
func (r *GormRepository) ListDailyAllocations(ctx context.Context, partnerID, date string) ([]models.DailyAllocation, error) {
	var rows []models.DailyAllocation
	if err := r.db.WithContext(ctx).
		Where("delivery_partner_id = ? AND date = ?", partnerID, date).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list daily allocations")
	}
	return rows, nil
}

// GetDelivery gets a delivery by id
func (r *GormRepository) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&delivery).Error; err != nil {
		return nil, notFound(err, "failed to get delivery")
	}
	return &delivery, nil
}

// ListDeliveries lists deliveries matching the filter
func (r *GormRepository) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]models.Delivery, error) {
	query := r.db.WithContext(ctx).Model(&models.Delivery{})
	if filter.PartnerID != "" {
		query = query.Where("delivery_partner_id = ?", filter.PartnerID)
	}
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Date != "" {
		query = query.Where("date = ?", filter.Date)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Key != "" {
		query = query.Where("delivery_key = ?", filter.Key)
	}

	var deliveries []models.Delivery
	if err := query.Order("created_at ASC").Find(&deliveries).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list deliveries")
	}
	return deliveries, nil
}

// UpsertDelivery inserts or updates a delivery by id
func (r *GormRepository) UpsertDelivery(ctx context.Context, delivery *models.Delivery) error {
	if err := r.db.WithContext(ctx).Save(delivery).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to save delivery")
	}
	return nil
}

// ReplaceCustomerAssignments replaces a partner's assignment set
func (r *GormRepository) ReplaceCustomerAssignments(ctx context.Context, partnerID string, assignments []models.CustomerAssignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("delivery_partner_id = ?", partnerID).Delete(&models.CustomerAssignment{}).Error; err != nil {
			return pkgerrors.Wrap(err, "failed to delete customer assignments")
		}
		if len(assignments) == 0 {
			return nil
		}
		if err := tx.Create(&assignments).Error; err != nil {
			return pkgerrors.Wrap(err, "failed to insert customer assignments")
		}
		return nil
	})
}

// ListCustomerAssignments lists a partner's assignments
func (r *GormRepository) ListCustomerAssignments(ctx context.Context, partnerID string) ([]models.CustomerAssignment, error) {
	var assignments []models.CustomerAssignment
	if err := r.db.WithContext(ctx).
		Where("delivery_partner_id = ?", partnerID).
		Order("assigned_at ASC").
		Find(&assignments).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list customer assignments")
	}
	return assignments, nil
}

// InsertPickupLog appends a pickup log
func (r *GormRepository) InsertPickupLog(ctx context.Context, pickup *models.PickupLog) error {
	if err := r.db.WithContext(ctx).Create(pickup).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to insert pickup log")
	}
	return nil
}
