package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/engine"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
)

// EventType definitions
const (
	AddDailyAllocation   = "AddDailyAllocation"
	RecordPickup         = "RecordPickup"
	UpdateDeliveryStatus = "UpdateDeliveryStatus"
	AssignCustomers      = "AssignCustomers"
)

// AzureBusMessage is the common message structure
type AzureBusMessage struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// Commands is the part of the reconciliation engine the bus can drive
type Commands interface {
	AddDailyAllocation(ctx context.Context, cmd engine.AddDailyAllocationCommand) (*engine.AllocationResult, error)
	RecordPickup(ctx context.Context, cmd engine.RecordPickupCommand) (*engine.AllocationResult, error)
	UpdateDeliveryStatus(ctx context.Context, cmd engine.UpdateDeliveryStatusCommand) (*models.Delivery, error)
	AssignCustomersToPartner(ctx context.Context, cmd engine.AssignCustomersCommand) (*models.DeliveryPartner, error)
}

type Processor struct {
	commands Commands
}

func NewProcessor(commands Commands) *Processor {
	return &Processor{commands: commands}
}

func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	return p.Dispatch(ctx, message.Body)
}

// Dispatch decodes a message body and runs the command it carries
func (p *Processor) Dispatch(ctx context.Context, body []byte) error {
	var msg AzureBusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	log.Info().Str("eventType", msg.EventType).Msg("Processing message")

	switch msg.EventType {
	case AddDailyAllocation:
		var cmd engine.AddDailyAllocationCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.commands.AddDailyAllocation(ctx, cmd)
		return err

	case RecordPickup:
		var cmd engine.RecordPickupCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.commands.RecordPickup(ctx, cmd)
		return err

	case UpdateDeliveryStatus:
		var cmd engine.UpdateDeliveryStatusCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.commands.UpdateDeliveryStatus(ctx, cmd)
		return err

	case AssignCustomers:
		var cmd engine.AssignCustomersCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.commands.AssignCustomersToPartner(ctx, cmd)
		return err

	default:
		return fmt.Errorf("unsupported event type: %s", msg.EventType)
	}
}
