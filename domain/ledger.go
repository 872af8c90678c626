package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerAggregateType is the aggregate type of partner day ledgers
const LedgerAggregateType = "allocation_ledger"

// AllocationStatus is the lifecycle state of a day's allocation
type AllocationStatus string

const (
	AllocationStatusAllocated  AllocationStatus = "allocated"
	AllocationStatusInProgress AllocationStatus = "in_progress"
	AllocationStatusCompleted  AllocationStatus = "completed"
)

// LedgerState is the reduced view of a partner's allocation for one day
type LedgerState struct {
	PartnerID     string           `json:"delivery_partner_id"`
	Date          string           `json:"date"`
	SupplierID    string           `json:"supplier_id"`
	AllocationID  string           `json:"allocation_id"`
	Allocated     decimal.Decimal  `json:"allocated"`
	Remaining     decimal.Decimal  `json:"remaining"`
	Delivered     decimal.Decimal  `json:"delivered"`
	Status        AllocationStatus `json:"status"`
	EffectiveAt   time.Time        `json:"effective_at"`
	Grants        int              `json:"grants"`
	Completions   int              `json:"completions"`
	Cancellations int              `json:"cancellations"`
}

// HasAllocation reports whether any allocation has been granted for the day
func (s LedgerState) HasAllocation() bool {
	return s.AllocationID != ""
}

// LedgerAggregate is the append-only ledger of one partner's day
type LedgerAggregate struct {
	*AggregateBase
	State LedgerState
}

// LedgerID returns the aggregate id for a partner's day
func LedgerID(partnerID, date string) string {
	return "ledger:" + partnerID + ":" + date
}

// NewLedgerAggregate creates an empty ledger for a partner's day
func NewLedgerAggregate(partnerID, date string) *LedgerAggregate {
	aggregate := &LedgerAggregate{
		State: LedgerState{
			PartnerID: partnerID,
			Date:      date,
			Allocated: decimal.Zero,
			Remaining: decimal.Zero,
			Delivered: decimal.Zero,
		},
	}
	aggregate.AggregateBase = NewAggregateBase(LedgerID(partnerID, date), LedgerAggregateType, aggregate.applyEvent)

	return aggregate
}

// Deduct subtracts delivered liters from a remaining quantity, clamped at zero
func Deduct(remaining, delivered decimal.Decimal) decimal.Decimal {
	next := remaining.Sub(delivered)
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}

// StatusAfterDelivery derives the allocation status once liters have been delivered
func StatusAfterDelivery(remaining decimal.Decimal) AllocationStatus {
	if remaining.Sign() <= 0 {
		return AllocationStatusCompleted
	}
	return AllocationStatusInProgress
}

// applyEvent applies an event to the ledger
func (a *LedgerAggregate) applyEvent(event interface{}) error {
	switch e := event.(type) {
	case AllocationGrantedEvent:
		a.State.Grants++
		// An older row arriving late is kept in the log but never becomes effective.
		if a.State.HasAllocation() && e.CreatedAt.Before(a.State.EffectiveAt) {
			return nil
		}
		a.State.AllocationID = e.AllocationID
		a.State.SupplierID = e.SupplierID
		a.State.Allocated = e.Allocated
		a.State.Remaining = e.Remaining
		a.State.EffectiveAt = e.CreatedAt
		a.State.Status = e.Status
		if a.State.Status == "" {
			a.State.Status = AllocationStatusAllocated
		}

	case DeliveryCompletedEvent:
		a.State.Completions++
		a.State.Delivered = a.State.Delivered.Add(e.Quantity)
		a.State.Remaining = Deduct(a.State.Remaining, e.Quantity)
		a.State.Status = StatusAfterDelivery(a.State.Remaining)

	case DeliveryCancelledEvent:
		a.State.Cancellations++
	}

	return nil
}
