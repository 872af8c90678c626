package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for allocation and delivery dates
const DateLayout = "2006-01-02"

// DeliveryStatus is the lifecycle state of a single delivery
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusCompleted DeliveryStatus = "completed"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// ErrInvalidTransition is returned for a status change the delivery lifecycle does not define
var ErrInvalidTransition = errors.New("invalid delivery status transition")

// DeliveryKey identifies a delivery by customer, partner and day
type DeliveryKey struct {
	CustomerID string `json:"customer_id" validate:"required"`
	PartnerID  string `json:"delivery_partner_id" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
}

// String renders the key as customerId_partnerId_date
func (k DeliveryKey) String() string {
	return k.CustomerID + "_" + k.PartnerID + "_" + k.Date
}

// ParseDeliveryKey recovers a key from a customerId_partnerId_date identifier
func ParseDeliveryKey(id string) (DeliveryKey, bool) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return DeliveryKey{}, false
	}
	for _, part := range parts {
		if part == "" {
			return DeliveryKey{}, false
		}
	}
	if _, err := time.Parse(DateLayout, parts[2]); err != nil {
		return DeliveryKey{}, false
	}

	return DeliveryKey{CustomerID: parts[0], PartnerID: parts[1], Date: parts[2]}, true
}

// IsTerminal reports whether no further progress is expected from the status
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusCompleted || s == DeliveryStatusCancelled
}

// CheckTransition validates a delivery status change.
// Completing an already completed delivery is accepted and deducts again.
func CheckTransition(from, to DeliveryStatus) error {
	switch {
	case from == "" || from == DeliveryStatusPending:
		return nil
	case from == to:
		return nil
	default:
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
}

// FormatDate renders a time as a calendar day
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
