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

const today = "2026-10-15"

// stepClock advances one second per reading so every row gets a distinct createdAt
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	engine *Engine
	repo   repository.Repository
	events eventstore.EventStore
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	clock := &stepClock{t: time.Date(2026, 10, 15, 5, 0, 0, 0, time.UTC)}
	opts.Clock = clock.Now

	repo := repository.NewLocalRepository(cache.NewMemoryStore())
	events := eventstore.NewKVEventStore(cache.NewMemoryStore())
	return &fixture{engine: New(repo, events, opts), repo: repo, events: events}
}

// seed registers partner p1 with customers c1, c2, c3 drinking 10, 20 and 30 liters
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.engine.SaveDeliveryPartner(ctx, &models.DeliveryPartner{ID: "p1", SupplierID: "s1", Name: "Ravi"}))
	for id, liters := range map[string]int64{"c1": 10, "c2": 20, "c3": 30} {
		require.NoError(t, f.engine.SaveCustomer(ctx, &models.Customer{
			ID:            id,
			SupplierID:    "s1",
			DailyQuantity: decimal.NewFromInt(liters),
			Status:        "active",
		}))
	}
	_, err := f.engine.AssignCustomersToPartner(ctx, AssignCustomersCommand{PartnerID: "p1", CustomerIDs: []string{"c1", "c2", "c3"}})
	require.NoError(t, err)
}

func (f *fixture) allocate(t *testing.T, liters int64) *AllocationResult {
	t.Helper()
	result, err := f.engine.AddDailyAllocation(context.Background(), AddDailyAllocationCommand{
		PartnerID:         "p1",
		SupplierID:        "s1",
		Date:              today,
		AllocatedQuantity: decimal.NewFromInt(liters),
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) complete(t *testing.T, deliveryID string, override *decimal.Decimal) *models.Delivery {
	t.Helper()
	delivery, err := f.engine.UpdateDeliveryStatus(context.Background(), UpdateDeliveryStatusCommand{
		DeliveryID: deliveryID,
		Status:     domain.DeliveryStatusCompleted,
		Quantity:   override,
	})
	require.NoError(t, err)
	return delivery
}

func (f *fixture) effective(t *testing.T) *models.DailyAllocation {
	t.Helper()
	allocation, err := f.engine.EffectiveAllocation(context.Background(), "p1", today)
	require.NoError(t, err)
	return allocation
}

func liters(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

func assertLiters(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, got.Equal(decimal.NewFromInt(want)), "want %d liters, got %s", want, got)
}

func deliveryFor(t *testing.T, deliveries []models.Delivery, customerID string) models.Delivery {
	t.Helper()
	for _, delivery := range deliveries {
		if delivery.CustomerID == customerID {
			return delivery
		}
	}
	t.Fatalf("no delivery for %s", customerID)
	return models.Delivery{}
}

func TestLatestAllocationIsEffective(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)

	for _, amount := range []int64{100, 80, 120, 90} {
		f.allocate(t, amount)
		effective := f.effective(t)
		assertLiters(t, amount, effective.AllocatedQuantity)
		assertLiters(t, amount, effective.RemainingQuantity)
		assert.Equal(t, domain.AllocationStatusAllocated, effective.Status)
	}

	rows, err := f.repo.ListDailyAllocations(context.Background(), "p1", today)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	partner, err := f.repo.GetDeliveryPartner(context.Background(), "p1")
	require.NoError(t, err)
	assertLiters(t, 90, partner.DailyAllocation)
	assertLiters(t, 90, partner.RemainingQuantity)
}

func TestAllocationGeneratesOneDeliveryPerAssignedCustomer(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)

	result := f.allocate(t, 100)
	require.Len(t, result.Deliveries, 3)

	total := decimal.Zero
	for _, delivery := range result.Deliveries {
		assert.Equal(t, domain.DeliveryStatusPending, delivery.Status)
		assert.Equal(t, today, delivery.Date)
		assert.Equal(t, "s1", delivery.SupplierID)
		assert.True(t, delivery.Quantity.Equal(delivery.SuggestedQuantity))
		assert.Equal(t, delivery.Key().String(), delivery.DeliveryKey)
		assert.Nil(t, delivery.CompletedTime)
		total = total.Add(delivery.SuggestedQuantity)
	}
	assertLiters(t, 60, total)
	assertLiters(t, 30, deliveryFor(t, result.Deliveries, "c3").Quantity)

	stored, err := f.engine.ListDeliveries(context.Background(), repository.DeliveryFilter{PartnerID: "p1", Date: today})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestRepeatedAllocationsAccumulateDeliveries(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)

	f.allocate(t, 100)
	f.allocate(t, 50)

	stored, err := f.engine.ListDeliveries(context.Background(), repository.DeliveryFilter{PartnerID: "p1", Date: today})
	require.NoError(t, err)
	assert.Len(t, stored, 6)
}

func TestDedupeSkipsCustomersAlreadyScheduled(t *testing.T) {
	f := newFixture(t, Options{DedupeDeliveries: true})
	f.seed(t)

	first := f.allocate(t, 100)
	require.Len(t, first.Deliveries, 3)

	second := f.allocate(t, 50)
	assert.Empty(t, second.Deliveries)

	stored, err := f.engine.ListDeliveries(context.Background(), repository.DeliveryFilter{PartnerID: "p1", Date: today})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestEmptyAssignmentGeneratesNoDeliveries(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)

	partner, err := f.engine.AssignCustomersToPartner(context.Background(), AssignCustomersCommand{PartnerID: "p1", CustomerIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, partner.AssignedCustomers)

	result := f.allocate(t, 100)
	assert.Empty(t, result.Deliveries)
}

func TestCompletionDeductsFromRemaining(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	result := f.allocate(t, 100)

	delivery := f.complete(t, deliveryFor(t, result.Deliveries, "c2").ID, liters(25))
	assert.Equal(t, domain.DeliveryStatusCompleted, delivery.Status)
	require.NotNil(t, delivery.CompletedTime)
	assertLiters(t, 25, delivery.Quantity)
	assertLiters(t, 20, delivery.SuggestedQuantity)

	effective := f.effective(t)
	assertLiters(t, 75, effective.RemainingQuantity)
	assert.Equal(t, domain.AllocationStatusInProgress, effective.Status)

	partner, err := f.repo.GetDeliveryPartner(context.Background(), "p1")
	require.NoError(t, err)
	assertLiters(t, 75, partner.RemainingQuantity)
}

func TestOverDeliveryClampsAtZero(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	result := f.allocate(t, 20)

	f.complete(t, deliveryFor(t, result.Deliveries, "c3").ID, nil)

	effective := f.effective(t)
	assertLiters(t, 0, effective.RemainingQuantity)
	assert.False(t, effective.RemainingQuantity.IsNegative())
	assert.Equal(t, domain.AllocationStatusCompleted, effective.Status)
}

func TestCancellationLeavesRemainingUntouched(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	result := f.allocate(t, 100)

	delivery, err := f.engine.UpdateDeliveryStatus(context.Background(), UpdateDeliveryStatusCommand{
		DeliveryID: deliveryFor(t, result.Deliveries, "c1").ID,
		Status:     domain.DeliveryStatusCancelled,
		Notes:      "customer away",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCancelled, delivery.Status)
	assert.Equal(t, "customer away", delivery.Notes)
	assert.Nil(t, delivery.CompletedTime)

	effective := f.effective(t)
	assertLiters(t, 100, effective.RemainingQuantity)
	assert.Equal(t, domain.AllocationStatusAllocated, effective.Status)

	view, err := f.engine.DayLedger(context.Background(), "p1", today)
	require.NoError(t, err)
	assert.Equal(t, 1, view.State.Cancellations)
	assertLiters(t, 100, view.State.Remaining)
}

func TestScenarioDefaultQuantities(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	result := f.allocate(t, 100)

	for _, delivery := range result.Deliveries {
		f.complete(t, delivery.ID, nil)
	}

	effective := f.effective(t)
	assertLiters(t, 40, effective.RemainingQuantity)
	assert.Equal(t, domain.AllocationStatusInProgress, effective.Status)

	report, err := f.engine.AuditDay(context.Background(), "p1", today)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assertLiters(t, 60, report.CompletedTotal)
	assertLiters(t, 40, report.LedgerRemaining)
	assert.Equal(t, 3, report.CompletedDeliveries)
}

func TestScenarioOverrideQuantity(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	result := f.allocate(t, 100)

	delivery := f.complete(t, deliveryFor(t, result.Deliveries, "c3").ID, liters(50))
	assertLiters(t, 50, delivery.Quantity)

	effective := f.effective(t)
	assertLiters(t, 50, effective.RemainingQuantity)
	assert.Equal(t, domain.AllocationStatusInProgress, effective.Status)
}

func TestRecompletionDeductsAgain(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	result := f.allocate(t, 100)
	id := deliveryFor(t, result.Deliveries, "c1").ID

	f.complete(t, id, nil)
	f.complete(t, id, nil)

	assertLiters(t, 80, f.effective(t).RemainingQuantity)
}

func TestTerminalDeliveriesRejectOtherStatuses(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	result := f.allocate(t, 100)
	ctx := context.Background()

	completedID := deliveryFor(t, result.Deliveries, "c1").ID
	f.complete(t, completedID, nil)
	_, err := f.engine.UpdateDeliveryStatus(ctx, UpdateDeliveryStatusCommand{DeliveryID: completedID, Status: domain.DeliveryStatusCancelled})
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	cancelledID := deliveryFor(t, result.Deliveries, "c2").ID
	_, err = f.engine.UpdateDeliveryStatus(ctx, UpdateDeliveryStatusCommand{DeliveryID: cancelledID, Status: domain.DeliveryStatusCancelled, Notes: "closed"})
	require.NoError(t, err)
	_, err = f.engine.UpdateDeliveryStatus(ctx, UpdateDeliveryStatusCommand{DeliveryID: cancelledID, Status: domain.DeliveryStatusCompleted})
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	assertLiters(t, 90, f.effective(t).RemainingQuantity)
}

func TestLegacyIdentifierSynthesizesDelivery(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	_, err := f.engine.AssignCustomersToPartner(context.Background(), AssignCustomersCommand{PartnerID: "p1", CustomerIDs: []string{}})
	require.NoError(t, err)
	f.allocate(t, 100)

	delivery := f.complete(t, "c2_p1_"+today, nil)
	assert.Equal(t, "c2_p1_"+today, delivery.ID)
	assert.Equal(t, "c2", delivery.CustomerID)
	assert.Equal(t, "s1", delivery.SupplierID)
	assertLiters(t, 20, delivery.Quantity)
	assertLiters(t, 80, f.effective(t).RemainingQuantity)

	stored, err := f.repo.GetDelivery(context.Background(), "c2_p1_"+today)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCompleted, stored.Status)
}

func TestCompositeKeyResolvesGeneratedDelivery(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	result := f.allocate(t, 100)

	delivery, err := f.engine.UpdateDeliveryStatus(context.Background(), UpdateDeliveryStatusCommand{
		Key:    &domain.DeliveryKey{CustomerID: "c1", PartnerID: "p1", Date: today},
		Status: domain.DeliveryStatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, deliveryFor(t, result.Deliveries, "c1").ID, delivery.ID)
	assertLiters(t, 90, f.effective(t).RemainingQuantity)

	stored, err := f.engine.ListDeliveries(context.Background(), repository.DeliveryFilter{PartnerID: "p1", Date: today})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestUnknownDeliveryIsNotFound(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)

	_, err := f.engine.UpdateDeliveryStatus(context.Background(), UpdateDeliveryStatusCommand{DeliveryID: "nope", Status: domain.DeliveryStatusCompleted})
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestCompletionWithoutAllocationKeepsDelivery(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)

	delivery := f.complete(t, "c1_p1_"+today, nil)
	assert.Equal(t, domain.DeliveryStatusCompleted, delivery.Status)

	allocation, err := f.engine.UpdateRemainingQuantity(context.Background(), "p1", today, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Nil(t, allocation)
}

func TestCommandValidation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.engine.AddDailyAllocation(ctx, AddDailyAllocationCommand{PartnerID: "p1", SupplierID: "s1", Date: "15-10-2026", AllocatedQuantity: decimal.NewFromInt(10)})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.engine.AddDailyAllocation(ctx, AddDailyAllocationCommand{PartnerID: "p1", SupplierID: "s1", Date: today, AllocatedQuantity: decimal.NewFromInt(-1)})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.engine.AddDailyAllocation(ctx, AddDailyAllocationCommand{SupplierID: "s1", Date: today, AllocatedQuantity: decimal.NewFromInt(10)})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.engine.UpdateDeliveryStatus(ctx, UpdateDeliveryStatusCommand{DeliveryID: "d1", Status: domain.DeliveryStatusPending})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.engine.UpdateDeliveryStatus(ctx, UpdateDeliveryStatusCommand{DeliveryID: "d1", Status: domain.DeliveryStatusCompleted, Quantity: liters(-3)})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.engine.UpdateDeliveryStatus(ctx, UpdateDeliveryStatusCommand{Status: domain.DeliveryStatusCompleted})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.engine.RecordPickup(ctx, RecordPickupCommand{PartnerID: "p1", SupplierID: "s1", FarmerID: "f1", Date: today})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestRecordPickupRaisesAllocation(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	ctx := context.Background()

	result, err := f.engine.RecordPickup(ctx, RecordPickupCommand{PartnerID: "p1", SupplierID: "s1", FarmerID: "f1", Date: today, Quantity: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assertLiters(t, 50, result.Allocation.AllocatedQuantity)
	assertLiters(t, 50, result.Allocation.RemainingQuantity)
	assert.Equal(t, domain.AllocationStatusAllocated, result.Allocation.Status)
	require.Len(t, result.Deliveries, 3)

	f.complete(t, deliveryFor(t, result.Deliveries, "c1").ID, nil)

	result, err = f.engine.RecordPickup(ctx, RecordPickupCommand{PartnerID: "p1", SupplierID: "s1", FarmerID: "f2", Date: today, Quantity: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assertLiters(t, 70, result.Allocation.AllocatedQuantity)
	assertLiters(t, 60, result.Allocation.RemainingQuantity)
	assert.Equal(t, domain.AllocationStatusInProgress, result.Allocation.Status)

	effective := f.effective(t)
	assert.Equal(t, result.Allocation.ID, effective.ID)

	view, err := f.engine.DayLedger(ctx, "p1", today)
	require.NoError(t, err)
	assert.Equal(t, 2, view.State.Grants)
	assert.Equal(t, 1, view.State.Completions)
	assertLiters(t, 60, view.State.Remaining)
	granted, ok := view.Events[len(view.Events)-1].Data.(domain.AllocationGrantedEvent)
	require.True(t, ok)
	assert.Equal(t, domain.SourcePickup, granted.Source)
}

func TestAssignCustomersReplacesSet(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	ctx := context.Background()

	first := f.allocate(t, 100)
	require.Len(t, first.Deliveries, 3)

	partner, err := f.engine.AssignCustomersToPartner(ctx, AssignCustomersCommand{PartnerID: "p1", CustomerIDs: []string{"c3", "c1", "c3"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c1"}, partner.AssignedCustomers)

	assignments, err := f.repo.ListCustomerAssignments(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, assignments, 2)

	second := f.allocate(t, 40)
	assert.Len(t, second.Deliveries, 2)

	orphaned, err := f.engine.ListDeliveries(ctx, repository.DeliveryFilter{CustomerID: "c2", Status: domain.DeliveryStatusPending})
	require.NoError(t, err)
	assert.Len(t, orphaned, 1)

	_, err = f.engine.AssignCustomersToPartner(ctx, AssignCustomersCommand{PartnerID: "ghost", CustomerIDs: []string{"c1"}})
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestAuditReportsDriftAfterMidDayAllocation(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	ctx := context.Background()

	result := f.allocate(t, 100)
	f.complete(t, deliveryFor(t, result.Deliveries, "c1").ID, nil)
	f.allocate(t, 100)

	report, err := f.engine.AuditDay(ctx, "p1", today)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assertLiters(t, 90, report.Expected)
	assertLiters(t, 10, report.Drift)

	drifted, err := f.engine.AuditAll(ctx, today)
	require.NoError(t, err)
	require.Len(t, drifted, 1)
	assert.Equal(t, "p1", drifted[0].PartnerID)

	_, err = f.engine.AuditDay(ctx, "p1", "2026-10-16")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestAllocationForAnotherDayLeavesPartnerProjection(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	ctx := context.Background()

	f.allocate(t, 100)
	_, err := f.engine.AddDailyAllocation(ctx, AddDailyAllocationCommand{
		PartnerID:         "p1",
		SupplierID:        "s1",
		Date:              "2026-10-16",
		AllocatedQuantity: decimal.NewFromInt(300),
	})
	require.NoError(t, err)

	partner, err := f.repo.GetDeliveryPartner(ctx, "p1")
	require.NoError(t, err)
	assertLiters(t, 100, partner.DailyAllocation)
}

func TestLedgerCatchesUpWithRowsWrittenOutsideTheEngine(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	ctx := context.Background()

	require.NoError(t, f.repo.InsertDailyAllocation(ctx, &models.DailyAllocation{
		ID:                "external",
		SupplierID:        "s1",
		DeliveryPartnerID: "p1",
		Date:              today,
		AllocatedQuantity: decimal.NewFromInt(40),
		RemainingQuantity: decimal.NewFromInt(40),
		Status:            domain.AllocationStatusAllocated,
		CreatedAt:         time.Date(2026, 10, 15, 4, 0, 0, 0, time.UTC),
	}))

	allocation, err := f.engine.UpdateRemainingQuantity(ctx, "p1", today, decimal.NewFromInt(15))
	require.NoError(t, err)
	require.NotNil(t, allocation)
	assert.Equal(t, "external", allocation.ID)
	assertLiters(t, 25, allocation.RemainingQuantity)

	view, err := f.engine.DayLedger(ctx, "p1", today)
	require.NoError(t, err)
	assert.Equal(t, "external", view.State.AllocationID)
	assertLiters(t, 25, view.State.Remaining)
}

func TestPartnerProfileEditKeepsAssignmentsAndProjection(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t)
	ctx := context.Background()

	f.allocate(t, 100)
	before, err := f.repo.GetDeliveryPartner(ctx, "p1")
	require.NoError(t, err)

	edit := &models.DeliveryPartner{ID: "p1", SupplierID: "s1", Name: "Ravi K", Phone: "98450"}
	require.NoError(t, f.engine.SaveDeliveryPartner(ctx, edit))
	assert.Equal(t, []string{"c1", "c2", "c3"}, edit.AssignedCustomers)

	partner, err := f.repo.GetDeliveryPartner(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", partner.Name)
	assert.Equal(t, "98450", partner.Phone)
	assert.Equal(t, []string{"c1", "c2", "c3"}, partner.AssignedCustomers)
	assertLiters(t, 100, partner.DailyAllocation)
	assertLiters(t, 100, partner.RemainingQuantity)
	assert.True(t, partner.CreatedAt.Equal(before.CreatedAt))

	result := f.allocate(t, 80)
	assert.Len(t, result.Deliveries, 3)
}
