package repository

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// MirroredRepository writes to the remote store and a local mirror.
// Remote failures are logged and never fail the operation; reads prefer the
// remote and fall back to the mirror.
type MirroredRepository struct {
	remote Repository
	local  Repository
}

// NewMirroredRepository creates a repository that mirrors remote writes locally
func NewMirroredRepository(remote, local Repository) *MirroredRepository {
	return &MirroredRepository{remote: remote, local: local}
}

func (r *MirroredRepository) mirror(op string, remote, local func(Repository) error) error {
	if err := remote(r.remote); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("Remote write failed, keeping local copy")
	}
	return local(r.local)
}

func read[T any](r *MirroredRepository, op string, fn func(Repository) (T, error)) (T, error) {
	value, err := fn(r.remote)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("op", op).Msg("Remote read failed, using local copy")
	}
	return fn(r.local)
}

// GetDeliveryPartner gets a delivery partner by id
func (r *MirroredRepository) GetDeliveryPartner(ctx context.Context, id string) (*models.DeliveryPartner, error) {
	return read(r, "GetDeliveryPartner", func(repo Repository) (*models.DeliveryPartner, error) {
		return repo.GetDeliveryPartner(ctx, id)
	})
}

// ListDeliveryPartners lists all delivery partners
func (r *MirroredRepository) ListDeliveryPartners(ctx context.Context) ([]models.DeliveryPartner, error) {
	return read(r, "ListDeliveryPartners", func(repo Repository) ([]models.DeliveryPartner, error) {
		return repo.ListDeliveryPartners(ctx)
	})
}

// SaveDeliveryPartner inserts or updates a delivery partner
func (r *MirroredRepository) SaveDeliveryPartner(ctx context.Context, partner *models.DeliveryPartner) error {
	save := func(repo Repository) error { return repo.SaveDeliveryPartner(ctx, partner) }
	return r.mirror("SaveDeliveryPartner", save, save)
}

// GetCustomer gets a customer by id
func (r *MirroredRepository) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return read(r, "GetCustomer", func(repo Repository) (*models.Customer, error) {
		return repo.GetCustomer(ctx, id)
	})
}

// ListCustomersByIDs gets the customers with the given ids
func (r *MirroredRepository) ListCustomersByIDs(ctx context.Context, ids []string) ([]models.Customer, error) {
	return read(r, "ListCustomersByIDs", func(repo Repository) ([]models.Customer, error) {
		return repo.ListCustomersByIDs(ctx, ids)
	})
}

// SaveCustomer inserts or updates a customer
func (r *MirroredRepository) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	save := func(repo Repository) error { return repo.SaveCustomer(ctx, customer) }
	return r.mirror("SaveCustomer", save, save)
}

// InsertDailyAllocation appends an allocation row
func (r *MirroredRepository) InsertDailyAllocation(ctx context.Context, allocation *models.DailyAllocation) error {
	insert := func(repo Repository) error { return repo.InsertDailyAllocation(ctx, allocation) }
	return r.mirror("InsertDailyAllocation", insert, insert)
}

// UpdateDailyAllocation writes back remaining quantity and status
func (r *MirroredRepository) UpdateDailyAllocation(ctx context.Context, allocation *models.DailyAllocation) error {
	remote := func(repo Repository) error { return repo.UpdateDailyAllocation(ctx, allocation) }
	// The mirror may not hold rows written before it was attached.
	local := func(repo Repository) error {
		err := repo.UpdateDailyAllocation(ctx, allocation)
		if errors.Is(err, ErrNotFound) {
			return repo.InsertDailyAllocation(ctx, allocation)
		}
		return err
	}
	return r.mirror("UpdateDailyAllocation", remote, local)
}

// ListDailyAllocations lists a partner's allocation rows for a day
func (r *MirroredRepository) ListDailyAllocations(ctx context.Context, partnerID, date string) ([]models.DailyAllocation, error) {
	return read(r, "ListDailyAllocations", func(repo Repository) ([]models.DailyAllocation, error) {
		return repo.ListDailyAllocations(ctx, partnerID, date)
	})
}

// GetDelivery gets a delivery by id
func (r *MirroredRepository) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	return read(r, "GetDelivery", func(repo Repository) (*models.Delivery, error) {
		return repo.GetDelivery(ctx, id)
	})
}

// ListDeliveries lists deliveries matching the filter
func (r *MirroredRepository) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]models.Delivery, error) {
	return read(r, "ListDeliveries", func(repo Repository) ([]models.Delivery, error) {
		return repo.ListDeliveries(ctx, filter)
	})
}

// UpsertDelivery inserts or updates a delivery by id
func (r *MirroredRepository) UpsertDelivery(ctx context.Context, delivery *models.Delivery) error {
	upsert := func(repo Repository) error { return repo.UpsertDelivery(ctx, delivery) }
	return r.mirror("UpsertDelivery", upsert, upsert)
}

// ReplaceCustomerAssignments replaces a partner's assignment set
func (r *MirroredRepository) ReplaceCustomerAssignments(ctx context.Context, partnerID string, assignments []models.CustomerAssignment) error {
	replace := func(repo Repository) error { return repo.ReplaceCustomerAssignments(ctx, partnerID, assignments) }
	return r.mirror("ReplaceCustomerAssignments", replace, replace)
}

// ListCustomerAssignments lists a partner's assignments
func (r *MirroredRepository) ListCustomerAssignments(ctx context.Context, partnerID string) ([]models.CustomerAssignment, error) {
	return read(r, "ListCustomerAssignments", func(repo Repository) ([]models.CustomerAssignment, error) {
		return repo.ListCustomerAssignments(ctx, partnerID)
	})
}

// InsertPickupLog appends a pickup log
func (r *MirroredRepository) InsertPickupLog(ctx context.Context, pickup *models.PickupLog) error {
	insert := func(repo Repository) error { return repo.InsertPickupLog(ctx, pickup) }
	return r.mirror("InsertPickupLog", insert, insert)
}
