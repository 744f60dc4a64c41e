package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Notification templates
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateNewOrder          = "new_order"
	TemplateShipmentCreated   = "shipment_created"
)

type OrderWriter interface {
	InsertOrder(ctx context.Context, order *models.Order, withShipping bool) error
}

// PersistResult is what happened to one completed checkout.
type PersistResult struct {
	Order          *models.Order
	SchemaFallback bool
	Stock          StockSelection
	Inventory      *AdjustResult
}

// OrderPersister records a completed checkout as an order, then adjusts
// stock and tells the notification sinks.
type OrderPersister struct {
	reconciler *Reconciler
	inventory  *InventoryAdjuster
	orders     OrderWriter
	events     EventSink
	now        func() time.Time
	logger     *zap.Logger
}

func NewOrderPersister(
	reconciler *Reconciler,
	inventory *InventoryAdjuster,
	orders OrderWriter,
	events EventSink,
) *OrderPersister {
	return &OrderPersister{
		reconciler: reconciler,
		inventory:  inventory,
		orders:     orders,
		events:     events,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// PersistFromSession is not idempotent: replaying the same session writes
// a second order.
func (p *OrderPersister) PersistFromSession(ctx context.Context, session *models.CheckoutSession) (*PersistResult, error) {
	if session == nil || session.ID == "" {
		return nil, fmt.Errorf("%w: missing checkout session", ErrInvalidInput)
	}

	ctx, span := util.StartSpan(ctx, "OrderPersister.PersistFromSession",
		attribute.String("session_id", session.ID))
	defer span.End()

	items := p.reconciler.Reconcile(ctx, session.ID)
	order := BuildOrder(session, items)

	fallback, err := p.insert(ctx, order)
	if err != nil {
		util.RecordError(span, err)
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		p.logger.Error("Failed to persist order",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	util.OrdersCreatedTotal.Inc()
	span.SetAttributes(attribute.String("order_id", order.ID))

	result := &PersistResult{Order: order, SchemaFallback: fallback}

	// stock is only touched once the order row exists
	result.Stock = SelectStockItems(session.Metadata[models.MetaCartItems], items)
	if len(result.Stock.Items) > 0 {
		result.Inventory = p.inventory.Adjust(ctx, result.Stock.Items)
	}

	p.publish(ctx, order, result)

	fields := []zap.Field{
		zap.String("order_id", order.ID),
		zap.String("session_id", session.ID),
		zap.Int64("amount_total", order.AmountTotal),
		zap.Int("items", len(order.Items)),
		zap.String("stock_source", string(result.Stock.Source)),
		zap.Bool("schema_fallback", fallback),
	}
	if result.Inventory != nil && !result.Inventory.Success {
		p.logger.Warn("Order persisted, inventory partially adjusted",
			append(fields,
				zap.Int("stock_updated", len(result.Inventory.Updated)),
				zap.Int("stock_failed", len(result.Inventory.Failed)))...)
	} else {
		p.logger.Info("Order persisted", fields...)
	}
	return result, nil
}

// insert writes the order and retries once without shipping_amount when the
// schema lacks that column.
func (p *OrderPersister) insert(ctx context.Context, order *models.Order) (bool, error) {
	err := p.orders.InsertOrder(ctx, order, true)
	if err == nil {
		return false, nil
	}
	if !store.IsMissingShippingColumn(err) {
		return false, err
	}

	util.OrderSchemaFallbackTotal.Inc()
	p.logger.Warn("Orders table has no shipping_amount column, retrying without it",
		zap.String("order_id", order.ID),
		zap.Error(err))

	if err := p.orders.InsertOrder(ctx, order, false); err != nil {
		return true, err
	}
	return true, nil
}

func (p *OrderPersister) publish(ctx context.Context, order *models.Order, result *PersistResult) {
	now := p.now()

	created := &models.OrderCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCreated, now),
		OrderID:       order.ID,
		SessionID:     order.StripeSessionID,
		AmountTotal:   order.AmountTotal,
		Items:         order.Items,
		StockAdjusted: result.Inventory != nil && result.Inventory.Success,
	}
	if err := p.events.PublishOrderCreated(ctx, created); err != nil {
		p.logger.Error("Failed to publish OrderCreated event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	notifications := []*models.NotificationEvent{
		{
			BaseEvent: newBaseEvent(models.EventTypeNotification, now),
			Channel:   models.ChannelChat,
			Template:  TemplateNewOrder,
			OrderID:   order.ID,
			Order:     order,
		},
	}
	if order.CustomerEmail != "" {
		notifications = append(notifications, &models.NotificationEvent{
			BaseEvent: newBaseEvent(models.EventTypeNotification, now),
			Channel:   models.ChannelEmail,
			Recipient: order.CustomerEmail,
			Template:  TemplateOrderConfirmation,
			OrderID:   order.ID,
			Order:     order,
		})
	}
	for _, n := range notifications {
		if err := p.events.PublishNotification(ctx, n); err != nil {
			p.logger.Warn("Failed to send notification",
				zap.String("order_id", order.ID),
				zap.String("channel", n.Channel),
				zap.Error(err))
		}
	}
}

// BuildOrder maps a completed checkout onto a new order row. The amount is
// the provider's total, never the sum of items.
func BuildOrder(session *models.CheckoutSession, items []models.LineItem) *models.Order {
	meta := session.Metadata
	if items == nil {
		items = []models.LineItem{}
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		StripeSessionID: session.ID,
		InvoiceID:       session.Invoice,
		CustomerEmail:   strings.TrimSpace(session.CustomerDetails.Email),
		CustomerName:    customerName(meta[models.MetaFirstName], meta[models.MetaLastName], session.CustomerDetails.Name),
		CustomerPhone:   firstNonEmpty(meta[models.MetaPhone], session.CustomerDetails.Phone),
		Status:          models.OrderStatusPaid,
		AmountTotal:     session.AmountTotal,
		Items:           items,
	}
	if session.ShippingCost != nil {
		amount := session.ShippingCost.AmountTotal
		order.ShippingAmount = &amount
	}

	order.DeliveryMethod = deliveryMethod(meta)
	if order.DeliveryMethod == models.DeliveryHomeDelivery {
		order.DeliveryAddress = optional(meta[models.MetaStreet])
		order.DeliveryCity = optional(meta[models.MetaCity])
		order.DeliveryPostalCode = optional(meta[models.MetaPostalCode])
		order.DeliveryCountry = optional(meta[models.MetaCountry])
	} else {
		order.PacketaPointID = optional(meta[models.MetaPacketaPointID])
	}
	return order
}

func deliveryMethod(meta map[string]string) string {
	switch strings.ToLower(strings.TrimSpace(meta[models.MetaDeliveryMethod])) {
	case models.DeliveryHomeDelivery:
		return models.DeliveryHomeDelivery
	case models.DeliveryPickup:
		return models.DeliveryPickup
	}
	if strings.TrimSpace(meta[models.MetaPacketaPointID]) == "" && strings.TrimSpace(meta[models.MetaStreet]) != "" {
		return models.DeliveryHomeDelivery
	}
	return models.DeliveryPickup
}

// customerName title-cases first and last name using Czech word rules,
// falling back to the name the provider collected.
func customerName(first, last, fallback string) string {
	name := strings.Join(strings.Fields(first+" "+last), " ")
	if name == "" {
		name = strings.Join(strings.Fields(fallback), " ")
	}
	return cases.Title(language.Czech).String(name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
