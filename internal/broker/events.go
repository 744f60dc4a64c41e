package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events. Payment completions go to
// the payments topic, everything downstream of an order to notifications.
type EventPublisher struct {
	payments      *Producer
	notifications *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(payments, notifications *Producer) *EventPublisher {
	return &EventPublisher{payments: payments, notifications: notifications}
}

// PublishCheckoutCompleted hands a paid checkout to the order worker
func (ep *EventPublisher) PublishCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error {
	return ep.payments.PublishEvent(ctx, "session-"+event.Session.ID, event.EventType, event)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.notifications.PublishEvent(ctx, "order-"+event.OrderID, event.EventType, event)
}

// PublishShipment publishes ShipmentCreated and ShipmentCancelled events
func (ep *EventPublisher) PublishShipment(ctx context.Context, event *models.ShipmentEvent) error {
	return ep.notifications.PublishEvent(ctx, "order-"+event.OrderID, event.EventType, event)
}

// PublishLabelsPrinted publishes LabelsPrinted event
func (ep *EventPublisher) PublishLabelsPrinted(ctx context.Context, event *models.LabelsPrintedEvent) error {
	return ep.notifications.PublishEvent(ctx, "labels-"+event.EventID, event.EventType, event)
}

// PublishNotification asks the mailer or chat bot to send a message
func (ep *EventPublisher) PublishNotification(ctx context.Context, event *models.NotificationEvent) error {
	return ep.notifications.PublishEvent(ctx, "order-"+event.OrderID, event.EventType, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onCheckoutCompleted func(context.Context, *models.CheckoutCompletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCheckoutCompleted registers a handler for CheckoutCompleted events
func (eh *EventHandler) OnCheckoutCompleted(handler func(context.Context, *models.CheckoutCompletedEvent) error) {
	eh.onCheckoutCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		// undecodable messages are dropped
		util.GetLogger().Error("Dropping undecodable event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}

	logger := util.GetLogger().With(
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))
	logger.Debug("Handling event")

	switch baseEvent.EventType {
	case models.EventTypeCheckoutCompleted:
		if eh.onCheckoutCompleted != nil {
			var event models.CheckoutCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CheckoutCompleted event: %w", err)
			}
			return eh.onCheckoutCompleted(ctx, &event)
		}

	default:
		logger.Info("Unhandled event type")
	}

	return nil
}
