package service

import (
	"context"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
)

// EventSink publishes domain events and notifications. Callers log
// failures and carry on.
type EventSink interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishShipment(ctx context.Context, event *models.ShipmentEvent) error
	PublishLabelsPrinted(ctx context.Context, event *models.LabelsPrintedEvent) error
	PublishNotification(ctx context.Context, event *models.NotificationEvent) error
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: now,
	}
}
