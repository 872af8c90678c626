package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/eventstore"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/cache"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
)

var errUnavailable = errors.New("connection refused")

// flakyEventStore fails the next failSaves saves and, while failLoads is set, every load
type flakyEventStore struct {
	eventstore.EventStore
	mu        sync.Mutex
	failSaves int
	failLoads bool
}

func (s *flakyEventStore) Save(ctx context.Context, aggregate domain.Aggregate) error {
	s.mu.Lock()
	if s.failSaves > 0 {
		s.failSaves--
		s.mu.Unlock()
		return errUnavailable
	}
	s.mu.Unlock()
	return s.EventStore.Save(ctx, aggregate)
}

func (s *flakyEventStore) Load(ctx context.Context, aggregate domain.Aggregate) error {
	s.mu.Lock()
	fail := s.failLoads
	s.mu.Unlock()
	if fail {
		return errUnavailable
	}
	return s.EventStore.Load(ctx, aggregate)
}

func (s *flakyEventStore) setFailSaves(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = n
}

// offlineRepository is a remote store that rejects every call
type offlineRepository struct{}

func (offlineRepository) GetDeliveryPartner(context.Context, string) (*models.DeliveryPartner, error) {
	return nil, errUnavailable
}

func (offlineRepository) ListDeliveryPartners(context.Context) ([]models.DeliveryPartner, error) {
	return nil, errUnavailable
}

func (offlineRepository) SaveDeliveryPartner(context.Context, *models.DeliveryPartner) error {
	return errUnavailable
}

func (offlineRepository) GetCustomer(context.Context, string) (*models.Customer, error) {
	return nil, errUnavailable
}

func (offlineRepository) ListCustomersByIDs(context.Context, []string) ([]models.Customer, error) {
	return nil, errUnavailable
}

func (offlineRepository) SaveCustomer(context.Context, *models.Customer) error {
	return errUnavailable
}

func (offlineRepository) InsertDailyAllocation(context.Context, *models.DailyAllocation) error {
	return errUnavailable
}

func (offlineRepository) UpdateDailyAllocation(context.Context, *models.DailyAllocation) error {
	return errUnavailable
}

func (offlineRepository) ListDailyAllocations(context.Context, string, string) ([]models.DailyAllocation, error) {
	return nil, errUnavailable
}

func (offlineRepository) GetDelivery(context.Context, string) (*models.Delivery, error) {
	return nil, errUnavailable
}

func (offlineRepository) ListDeliveries(context.Context, repository.DeliveryFilter) ([]models.Delivery, error) {
	return nil, errUnavailable
}

func (offlineRepository) UpsertDelivery(context.Context, *models.Delivery) error {
	return errUnavailable
}

func (offlineRepository) ReplaceCustomerAssignments(context.Context, string, []models.CustomerAssignment) error {
	return errUnavailable
}

func (offlineRepository) ListCustomerAssignments(context.Context, string) ([]models.CustomerAssignment, error) {
	return nil, errUnavailable
}

func (offlineRepository) InsertPickupLog(context.Context, *models.PickupLog) error {
	return errUnavailable
}

func newFlakyFixture(t *testing.T, repo repository.Repository) (*fixture, *flakyEventStore) {
	t.Helper()

	clock := &stepClock{t: time.Date(2026, 10, 15, 5, 0, 0, 0, time.UTC)}
	events := &flakyEventStore{EventStore: eventstore.NewKVEventStore(cache.NewMemoryStore())}
	return &fixture{engine: New(repo, events, Options{Clock: clock.Now}), repo: repo, events: events}, events
}

func TestLostCompletionEventDoesNotResurrectLiters(t *testing.T) {
	f, events := newFlakyFixture(t, repository.NewLocalRepository(cache.NewMemoryStore()))
	f.seed(t)

	result := f.allocate(t, 100)

	events.setFailSaves(1)
	f.complete(t, deliveryFor(t, result.Deliveries, "c1").ID, nil)
	assertLiters(t, 90, f.effective(t).RemainingQuantity)

	f.complete(t, deliveryFor(t, result.Deliveries, "c2").ID, nil)
	allocation := f.effective(t)
	assertLiters(t, 70, allocation.RemainingQuantity)
	assert.Equal(t, domain.AllocationStatusInProgress, allocation.Status)

	view, err := f.engine.DayLedger(context.Background(), "p1", today)
	require.NoError(t, err)
	assertLiters(t, 70, view.State.Remaining)

	report, err := f.engine.AuditDay(context.Background(), "p1", today)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestLostAllocationEventIsGrantedAgain(t *testing.T) {
	f, events := newFlakyFixture(t, repository.NewLocalRepository(cache.NewMemoryStore()))
	f.seed(t)

	events.setFailSaves(1)
	result := f.allocate(t, 100)
	assertLiters(t, 100, result.Allocation.RemainingQuantity)

	f.complete(t, deliveryFor(t, result.Deliveries, "c3").ID, nil)
	assertLiters(t, 70, f.effective(t).RemainingQuantity)

	view, err := f.engine.DayLedger(context.Background(), "p1", today)
	require.NoError(t, err)
	assert.Equal(t, result.Allocation.ID, view.State.AllocationID)
	assertLiters(t, 70, view.State.Remaining)
}

func TestUnreadableLedgerFallsBackToRows(t *testing.T) {
	f, events := newFlakyFixture(t, repository.NewLocalRepository(cache.NewMemoryStore()))
	f.seed(t)

	result := f.allocate(t, 100)
	f.complete(t, deliveryFor(t, result.Deliveries, "c1").ID, nil)

	events.failLoads = true
	f.complete(t, deliveryFor(t, result.Deliveries, "c2").ID, liters(25))
	assertLiters(t, 65, f.effective(t).RemainingQuantity)

	second := f.allocate(t, 40)
	assertLiters(t, 40, second.Allocation.RemainingQuantity)
	assertLiters(t, 40, f.effective(t).RemainingQuantity)
}

func TestOfflineRemoteKeepsLocalOperationsWorking(t *testing.T) {
	local := repository.NewLocalRepository(cache.NewMemoryStore())
	f, _ := newFlakyFixture(t, repository.NewMirroredRepository(offlineRepository{}, local))
	f.seed(t)
	ctx := context.Background()

	result := f.allocate(t, 100)
	require.Len(t, result.Deliveries, 3)

	f.complete(t, deliveryFor(t, result.Deliveries, "c1").ID, nil)
	_, err := f.engine.UpdateDeliveryStatus(ctx, UpdateDeliveryStatusCommand{
		DeliveryID: deliveryFor(t, result.Deliveries, "c2").ID,
		Status:     domain.DeliveryStatusCancelled,
		Notes:      "away",
	})
	require.NoError(t, err)

	rows, err := local.ListDailyAllocations(ctx, "p1", today)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertLiters(t, 90, rows[0].RemainingQuantity)

	cancelled, err := local.GetDelivery(ctx, deliveryFor(t, result.Deliveries, "c2").ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCancelled, cancelled.Status)

	partner, err := local.GetDeliveryPartner(ctx, "p1")
	require.NoError(t, err)
	assertLiters(t, 90, partner.RemainingQuantity)
	assert.Len(t, partner.AssignedCustomers, 3)

	pickup, err := f.engine.RecordPickup(ctx, RecordPickupCommand{
		PartnerID:  "p1",
		SupplierID: "s1",
		FarmerID:   "f1",
		Date:       today,
		Quantity:   decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assertLiters(t, 100, pickup.Allocation.RemainingQuantity)
}
