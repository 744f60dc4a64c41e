package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersBySessionID(ctx context.Context, sessionID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

// OrderService handles operator reads and edits of single orders
type OrderService struct {
	store  OrderStore
	events EventSink
	now    func() time.Time
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, events EventSink) *OrderService {
	return &OrderService{
		store:  store,
		events: events,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

var validStatuses = map[string]bool{
	models.OrderStatusNew:        true,
	models.OrderStatusPaid:       true,
	models.OrderStatusProcessing: true,
	models.OrderStatusShipped:    true,
	models.OrderStatusDelivered:  true,
	models.OrderStatusCancelled:  true,
	models.OrderStatusRefunded:   true,
}

var resendableTemplates = map[string]bool{
	TemplateOrderConfirmation: true,
	TemplateShipmentCreated:   true,
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// OrdersForSession lists every order recorded for a payment session. More
// than one means the checkout notification was processed twice.
func (s *OrderService) OrdersForSession(ctx context.Context, sessionID string) ([]models.Order, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	orders, err := s.store.GetOrdersBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) > 1 {
		s.logger.Warn("Payment session has several orders",
			zap.String("session_id", sessionID),
			zap.Int("orders", len(orders)))
	}
	return orders, nil
}

// UpdateStatus overwrites the status. Concurrent edits are last-writer-wins.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to update order status: %w", err)
	}
	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", status))
	return nil
}

// ResendEmail queues a transactional email for the order's customer.
func (s *OrderService) ResendEmail(ctx context.Context, orderID, template string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.ResendEmail",
		attribute.String("order_id", orderID),
		attribute.String("template", template))
	defer span.End()

	if !resendableTemplates[template] {
		return fmt.Errorf("%w: unknown email template %q", ErrInvalidInput, template)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.CustomerEmail == "" {
		return fmt.Errorf("%w: order has no customer email", ErrInvalidInput)
	}

	event := &models.NotificationEvent{
		BaseEvent: newBaseEvent(models.EventTypeNotification, s.now()),
		Channel:   models.ChannelEmail,
		Recipient: order.CustomerEmail,
		Template:  template,
		OrderID:   order.ID,
		Order:     order,
	}
	if err := s.events.PublishNotification(ctx, event); err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}

	s.logger.Info("Email queued",
		zap.String("order_id", order.ID),
		zap.String("template", template))
	return nil
}
