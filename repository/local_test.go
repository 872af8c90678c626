package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/cache"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

func TestLocalRepositoryPartners(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalRepository(cache.NewMemoryStore())

	_, err := repo.GetDeliveryPartner(ctx, "p1")
	assert.True(t, errors.Is(err, ErrNotFound))

	partner := &models.DeliveryPartner{ID: "p1", Name: "Ravi", AssignedCustomers: []string{"c1"}}
	require.NoError(t, repo.SaveDeliveryPartner(ctx, partner))

	partner.Name = "Ravi K"
	require.NoError(t, repo.SaveDeliveryPartner(ctx, partner))

	partners, err := repo.ListDeliveryPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)
	assert.Equal(t, "Ravi K", partners[0].Name)
	assert.Equal(t, []string{"c1"}, partners[0].AssignedCustomers)
}

func TestLocalRepositoryAllocationsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalRepository(cache.NewMemoryStore())
	at := time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)

	second := &models.DailyAllocation{ID: "a2", DeliveryPartnerID: "p1", Date: "2026-10-15", AllocatedQuantity: decimal.NewFromInt(80), CreatedAt: at.Add(time.Hour)}
	first := &models.DailyAllocation{ID: "a1", DeliveryPartnerID: "p1", Date: "2026-10-15", AllocatedQuantity: decimal.NewFromInt(100), CreatedAt: at}
	other := &models.DailyAllocation{ID: "a3", DeliveryPartnerID: "p1", Date: "2026-10-16", CreatedAt: at}
	require.NoError(t, repo.InsertDailyAllocation(ctx, second))
	require.NoError(t, repo.InsertDailyAllocation(ctx, first))
	require.NoError(t, repo.InsertDailyAllocation(ctx, other))

	rows, err := repo.ListDailyAllocations(ctx, "p1", "2026-10-15")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a1", rows[0].ID)
	assert.Equal(t, "a2", rows[1].ID)

	second.RemainingQuantity = decimal.NewFromInt(30)
	second.Status = domain.AllocationStatusInProgress
	require.NoError(t, repo.UpdateDailyAllocation(ctx, second))

	rows, err = repo.ListDailyAllocations(ctx, "p1", "2026-10-15")
	require.NoError(t, err)
	assert.True(t, rows[1].RemainingQuantity.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, domain.AllocationStatusInProgress, rows[1].Status)

	err = repo.UpdateDailyAllocation(ctx, &models.DailyAllocation{ID: "missing"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalRepositoryDeliveries(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalRepository(cache.NewMemoryStore())

	key := domain.DeliveryKey{CustomerID: "c1", PartnerID: "p1", Date: "2026-10-15"}
	delivery := &models.Delivery{ID: "d1", DeliveryKey: key.String(), CustomerID: "c1", DeliveryPartnerID: "p1", Date: "2026-10-15", Status: domain.DeliveryStatusPending}
	require.NoError(t, repo.UpsertDelivery(ctx, delivery))
	require.NoError(t, repo.UpsertDelivery(ctx, &models.Delivery{ID: "d2", CustomerID: "c2", DeliveryPartnerID: "p1", Date: "2026-10-15", Status: domain.DeliveryStatusPending}))

	delivery.Status = domain.DeliveryStatusCompleted
	require.NoError(t, repo.UpsertDelivery(ctx, delivery))

	got, err := repo.GetDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCompleted, got.Status)

	byKey, err := repo.ListDeliveries(ctx, DeliveryFilter{Key: key.String()})
	require.NoError(t, err)
	require.Len(t, byKey, 1)

	pending, err := repo.ListDeliveries(ctx, DeliveryFilter{PartnerID: "p1", Status: domain.DeliveryStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "d2", pending[0].ID)
}

func TestLocalRepositoryReplaceCustomerAssignments(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalRepository(cache.NewMemoryStore())

	require.NoError(t, repo.ReplaceCustomerAssignments(ctx, "p1", []models.CustomerAssignment{
		{ID: "x1", DeliveryPartnerID: "p1", CustomerID: "c1"},
		{ID: "x2", DeliveryPartnerID: "p1", CustomerID: "c2"},
	}))
	require.NoError(t, repo.ReplaceCustomerAssignments(ctx, "p2", []models.CustomerAssignment{
		{ID: "x3", DeliveryPartnerID: "p2", CustomerID: "c3"},
	}))
	require.NoError(t, repo.ReplaceCustomerAssignments(ctx, "p1", []models.CustomerAssignment{
		{ID: "x4", DeliveryPartnerID: "p1", CustomerID: "c5"},
	}))

	p1, err := repo.ListCustomerAssignments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p1, 1)
	assert.Equal(t, "c5", p1[0].CustomerID)

	p2, err := repo.ListCustomerAssignments(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, p2, 1)
}

func TestLocalRepositoryCustomersByIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalRepository(cache.NewMemoryStore())

	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, repo.SaveCustomer(ctx, &models.Customer{ID: id, DailyQuantity: decimal.NewFromInt(2)}))
	}

	customers, err := repo.ListCustomersByIDs(ctx, []string{"c3", "c1", "c9"})
	require.NoError(t, err)
	assert.Len(t, customers, 2)

	_, err = repo.GetCustomer(ctx, "c9")
	assert.True(t, errors.Is(err, ErrNotFound))
}
