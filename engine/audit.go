package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
)

// LedgerView is a partner's day ledger with the events it was reduced from
type LedgerView struct {
	State  domain.LedgerState `json:"state"`
	Events []domain.Event     `json:"events"`
}

// AuditReport compares a day's remaining quantity with the completed deliveries
type AuditReport struct {
	PartnerID           string          `json:"delivery_partner_id"`
	Date                string          `json:"date"`
	AllocationID        string          `json:"allocation_id"`
	Allocated           decimal.Decimal `json:"allocated"`
	Remaining           decimal.Decimal `json:"remaining"`
	LedgerRemaining     decimal.Decimal `json:"ledger_remaining"`
	CompletedTotal      decimal.Decimal `json:"completed_total"`
	CompletedDeliveries int             `json:"completed_deliveries"`
	Expected            decimal.Decimal `json:"expected"`
	Drift               decimal.Decimal `json:"drift"`
	Consistent          bool            `json:"consistent"`
}

// DayLedger returns the reduced ledger of a partner's day
func (e *Engine) DayLedger(ctx context.Context, partnerID, date string) (*LedgerView, error) {
	ledger := domain.NewLedgerAggregate(partnerID, date)
	events, err := e.events.GetEvents(ctx, ledger.GetID())
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger events: %w", err)
	}
	for _, event := range events {
		if err := ledger.Replay(event); err != nil {
			return nil, err
		}
	}

	return &LedgerView{State: ledger.State, Events: events}, nil
}

// AuditDay checks the effective remaining quantity against the allocation
// minus every completed delivery of the day. Drift is reported, never fixed.
func (e *Engine) AuditDay(ctx context.Context, partnerID, date string) (*AuditReport, error) {
	rows, err := e.repo.ListDailyAllocations(ctx, partnerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily allocations: %w", err)
	}
	effective, ok := models.EffectiveAllocation(rows)
	if !ok {
		return nil, fmt.Errorf("no allocation for %s on %s: %w", partnerID, date, repository.ErrNotFound)
	}

	completed, err := e.repo.ListDeliveries(ctx, repository.DeliveryFilter{
		PartnerID: partnerID,
		Date:      date,
		Status:    domain.DeliveryStatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	total := decimal.Zero
	for _, delivery := range completed {
		total = total.Add(delivery.Quantity)
	}

	view, err := e.DayLedger(ctx, partnerID, date)
	if err != nil {
		return nil, err
	}

	expected := domain.Deduct(effective.AllocatedQuantity, total)
	drift := effective.RemainingQuantity.Sub(expected)

	return &AuditReport{
		PartnerID:           partnerID,
		Date:                date,
		AllocationID:        effective.ID,
		Allocated:           effective.AllocatedQuantity,
		Remaining:           effective.RemainingQuantity,
		LedgerRemaining:     view.State.Remaining,
		CompletedTotal:      total,
		CompletedDeliveries: len(completed),
		Expected:            expected,
		Drift:               drift,
		Consistent:          drift.IsZero(),
	}, nil
}

// AuditAll audits every partner's day and returns the reports that drifted
func (e *Engine) AuditAll(ctx context.Context, date string) ([]AuditReport, error) {
	partners, err := e.repo.ListDeliveryPartners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery partners: %w", err)
	}

	var drifted []AuditReport
	for _, partner := range partners {
		report, err := e.AuditDay(ctx, partner.ID, date)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return drifted, err
		}
		if !report.Consistent {
			drifted = append(drifted, *report)
		}
	}
	return drifted, nil
}
