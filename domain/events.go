package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType constants
const (
	AllocationGranted = "V1_ALLOCATION_GRANTED"
	DeliveryCompleted = "V1_DELIVERY_COMPLETED"
	DeliveryCancelled = "V1_DELIVERY_CANCELLED"
)

// Allocation sources
const (
	SourceSupplier = "supplier"
	SourcePickup   = "pickup"
	// SourceResync marks a grant that realigns the ledger with the stored row
	SourceResync = "resync"
)

// Event represents a domain event
type Event struct {
	ID            string      `json:"id"`
	AggregateID   string      `json:"aggregate_id"`
	AggregateType string      `json:"aggregate_type"`
	Type          string      `json:"type"`
	Version       int         `json:"version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

// AllocationGrantedEvent records a new allocation row for a partner's day.
type AllocationGrantedEvent struct {
	AllocationID string           `json:"allocation_id"`
	SupplierID   string           `json:"supplier_id"`
	Allocated    decimal.Decimal  `json:"allocated"`
	Remaining    decimal.Decimal  `json:"remaining"`
	Status       AllocationStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	Source       string           `json:"source"`
}

// DeliveryCompletedEvent records liters handed over to a customer.
type DeliveryCompletedEvent struct {
	DeliveryID string          `json:"delivery_id"`
	CustomerID string          `json:"customer_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// DeliveryCancelledEvent records a cancelled delivery. It never moves stock.
type DeliveryCancelledEvent struct {
	DeliveryID string `json:"delivery_id"`
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason"`
}

// TypeOf returns the event type name for an event payload
func TypeOf(event interface{}) (string, error) {
	switch event.(type) {
	case AllocationGrantedEvent:
		return AllocationGranted, nil
	case DeliveryCompletedEvent:
		return DeliveryCompleted, nil
	case DeliveryCancelledEvent:
		return DeliveryCancelled, nil
	default:
		return "", fmt.Errorf("unknown event type: %T", event)
	}
}

// DecodeEvent unmarshals stored event data into its typed payload
func DecodeEvent(eventType string, data []byte) (interface{}, error) {
	switch eventType {
	case AllocationGranted:
		var e AllocationGrantedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return e, nil

	case DeliveryCompleted:
		var e DeliveryCompletedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return e, nil

	case DeliveryCancelled:
		var e DeliveryCancelledEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}
