package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/cache"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// LocalRepository keeps each table as one serialized collection in a key/value store
type LocalRepository struct {
	mu    sync.Mutex
	store cache.KeyValueStore
}

// NewLocalRepository creates a repository on a key/value store
func NewLocalRepository(store cache.KeyValueStore) *LocalRepository {
	return &LocalRepository{store: store}
}

func loadTable[T any](ctx context.Context, store cache.KeyValueStore, table string) ([]T, error) {
	raw, ok, err := store.Get(ctx, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", table)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var rows []T
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", table)
	}
	return rows, nil
}

func saveTable[T any](ctx context.Context, store cache.KeyValueStore, table string, rows []T) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", table)
	}
	if err := store.Set(ctx, table, string(raw)); err != nil {
		return errors.Wrapf(err, "failed to write %s", table)
	}
	return nil
}

// upsertRow replaces the row with the same id or appends it
func upsertRow[T any](ctx context.Context, store cache.KeyValueStore, table string, row T, id func(T) string) error {
	rows, err := loadTable[T](ctx, store, table)
	if err != nil {
		return err
	}
	for i := range rows {
		if id(rows[i]) == id(row) {
			rows[i] = row
			return saveTable(ctx, store, table, rows)
		}
	}
	return saveTable(ctx, store, table, append(rows, row))
}

// GetDeliveryPartner gets a delivery partner by id
func (r *LocalRepository) GetDeliveryPartner(ctx context.Context, id string) (*models.DeliveryPartner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	partners, err := loadTable[models.DeliveryPartner](ctx, r.store, TableDeliveryPartners)
	if err != nil {
		return nil, err
	}
	for _, partner := range partners {
		if partner.ID == id {
			return &partner, nil
		}
	}
	return nil, errors.Wrap(ErrNotFound, "failed to get delivery partner")
}

// ListDeliveryPartners lists all delivery partners
func (r *LocalRepository) ListDeliveryPartners(ctx context.Context) ([]models.DeliveryPartner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return loadTable[models.DeliveryPartner](ctx, r.store, TableDeliveryPartners)
}

// SaveDeliveryPartner inserts or updates a delivery partner
func (r *LocalRepository) SaveDeliveryPartner(ctx context.Context, partner *models.DeliveryPartner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return upsertRow(ctx, r.store, TableDeliveryPartners, *partner, func(p models.DeliveryPartner) string { return p.ID })
}

// GetCustomer gets a customer by id
func (r *LocalRepository) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	customers, err := loadTable[models.Customer](ctx, r.store, TableCustomers)
	if err != nil {
		return nil, err
	}
	for _, customer := range customers {
		if customer.ID == id {
			return &customer, nil
		}
	}
	return nil, errors.Wrap(ErrNotFound, "failed to get customer")
}

// ListCustomersByIDs gets the customers with the given ids
func (r *LocalRepository) ListCustomersByIDs(ctx context.Context, ids []string) ([]models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	customers, err := loadTable[models.Customer](ctx, r.store, TableCustomers)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var matching []models.Customer
	for _, customer := range customers {
		if _, ok := wanted[customer.ID]; ok {
			matching = append(matching, customer)
		}
	}
	return matching, nil
}

// SaveCustomer inserts or updates a customer
func (r *LocalRepository) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return upsertRow(ctx, r.store, TableCustomers, *customer, func(c models.Customer) string { return c.ID })
}

// InsertDailyAllocation appends an allocation row
func (r *LocalRepository) InsertDailyAllocation(ctx context.Context, allocation *models.DailyAllocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := loadTable[models.DailyAllocation](ctx, r.store, TableDailyAllocations)
	if err != nil {
		return err
	}
	return saveTable(ctx, r.store, TableDailyAllocations, append(rows, *allocation))
}

// UpdateDailyAllocation writes back remaining quantity and status
func (r *LocalRepository) UpdateDailyAllocation(ctx context.Context, allocation *models.DailyAllocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := loadTable[models.DailyAllocation](ctx, r.store, TableDailyAllocations)
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].ID == allocation.ID {
			rows[i].RemainingQuantity = allocation.RemainingQuantity
			rows[i].Status = allocation.Status
			rows[i].UpdatedAt = allocation.UpdatedAt
			return saveTable(ctx, r.store, TableDailyAllocations, rows)
		}
	}
	return errors.Wrap(ErrNotFound, "failed to update daily allocation")
}

// ListDailyAllocations lists a partner's allocation rows for a day
func (r *LocalRepository) ListDailyAllocations(ctx context.Context, partnerID, date string) ([]models.DailyAllocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := loadTable[models.DailyAllocation](ctx, r.store, TableDailyAllocations)
	if err != nil {
		return nil, err
	}

	var matching []models.DailyAllocation
	for _, row := range rows {
		if row.DeliveryPartnerID == partnerID && row.Date == date {
			matching = append(matching, row)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})
	return matching, nil
}

// GetDelivery gets a delivery by id
func (r *LocalRepository) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deliveries, err := loadTable[models.Delivery](ctx, r.store, TableDeliveries)
	if err != nil {
		return nil, err
	}
	for _, delivery := range deliveries {
		if delivery.ID == id {
			return &delivery, nil
		}
	}
	return nil, errors.Wrap(ErrNotFound, "failed to get delivery")
}

// ListDeliveries lists deliveries matching the filter
func (r *LocalRepository) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]models.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deliveries, err := loadTable[models.Delivery](ctx, r.store, TableDeliveries)
	if err != nil {
		return nil, err
	}

	var matching []models.Delivery
	for _, delivery := range deliveries {
		if filter.Matches(delivery) {
			matching = append(matching, delivery)
		}
	}
	return matching, nil
}

// UpsertDelivery inserts or updates a delivery by id
func (r *LocalRepository) UpsertDelivery(ctx context.Context, delivery *models.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return upsertRow(ctx, r.store, TableDeliveries, *delivery, func(d models.Delivery) string { return d.ID })
}

// ReplaceCustomerAssignments replaces a partner's assignment set
func (r *LocalRepository) ReplaceCustomerAssignments(ctx context.Context, partnerID string, assignments []models.CustomerAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := loadTable[models.CustomerAssignment](ctx, r.store, TableCustomerAssignments)
	if err != nil {
		return err
	}

	kept := make([]models.CustomerAssignment, 0, len(rows)+len(assignments))
	for _, row := range rows {
		if row.DeliveryPartnerID != partnerID {
			kept = append(kept, row)
		}
	}
	return saveTable(ctx, r.store, TableCustomerAssignments, append(kept, assignments...))
}

// ListCustomerAssignments lists a partner's assignments
func (r *LocalRepository) ListCustomerAssignments(ctx context.Context, partnerID string) ([]models.CustomerAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := loadTable[models.CustomerAssignment](ctx, r.store, TableCustomerAssignments)
	if err != nil {
		return nil, err
	}

	var matching []models.CustomerAssignment
	for _, row := range rows {
		if row.DeliveryPartnerID == partnerID {
			matching = append(matching, row)
		}
	}
	return matching, nil
}

// InsertPickupLog appends a pickup log
func (r *LocalRepository) InsertPickupLog(ctx context.Context, pickup *models.PickupLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := loadTable[models.PickupLog](ctx, r.store, TablePickupLogs)
	if err != nil {
		return err
	}
	return saveTable(ctx, r.store, TablePickupLogs, append(rows, *pickup))
}
