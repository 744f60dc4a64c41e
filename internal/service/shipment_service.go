package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment-service/internal/carrier"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PacketCarrier interface {
	CreatePacket(ctx context.Context, attrs carrier.PacketAttributes) (*carrier.Packet, error)
	CancelPacket(ctx context.Context, packetID string) error
}

type ShipmentStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	SetShipment(ctx context.Context, orderID, shipmentID, status string) error
	ClearShipment(ctx context.Context, orderID, status string) error
}

// ShipmentService creates and cancels carrier packets for orders.
type ShipmentService struct {
	orders                ShipmentStore
	carrier               PacketCarrier
	events                EventSink
	homeDeliveryCarrierID string
	now                   func() time.Time
	logger                *zap.Logger
}

func NewShipmentService(orders ShipmentStore, c PacketCarrier, events EventSink, homeDeliveryCarrierID string) *ShipmentService {
	return &ShipmentService{
		orders:                orders,
		carrier:               c,
		events:                events,
		homeDeliveryCarrierID: homeDeliveryCarrierID,
		now:                   time.Now,
		logger:                util.GetLogger(),
	}
}

func (s *ShipmentService) load(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// CreateShipment registers a packet with the carrier and moves the order to
// processing.
func (s *ShipmentService) CreateShipment(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "ShipmentService.CreateShipment", attribute.String("order_id", orderID))
	defer span.End()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.HasShipment() {
		return nil, ErrShipmentExists
	}

	attrs, err := s.packetAttributes(order)
	if err != nil {
		return nil, err
	}

	packet, err := s.carrier.CreatePacket(ctx, attrs)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if err := s.orders.SetShipment(ctx, order.ID, packet.ID, models.OrderStatusProcessing); err != nil {
		util.RecordError(span, err)
		s.logger.Error("Packet created but not stored on order",
			zap.String("order_id", order.ID),
			zap.String("shipment_id", packet.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to store shipment %s: %w", packet.ID, err)
	}
	order.PacketaShipmentID = &packet.ID
	order.Status = models.OrderStatusProcessing

	s.logger.Info("Shipment created",
		zap.String("order_id", order.ID),
		zap.String("shipment_id", packet.ID),
		zap.String("barcode", packet.Barcode))

	s.publishShipment(ctx, models.EventTypeShipmentCreated, order.ID, packet.ID)
	if order.CustomerEmail != "" {
		s.notify(ctx, &models.NotificationEvent{
			BaseEvent: newBaseEvent(models.EventTypeNotification, s.now()),
			Channel:   models.ChannelEmail,
			Recipient: order.CustomerEmail,
			Template:  TemplateShipmentCreated,
			OrderID:   order.ID,
			Order:     order,
		})
	}
	return order, nil
}

// CancelShipment cancels the packet and reverts the order to paid.
func (s *ShipmentService) CancelShipment(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "ShipmentService.CancelShipment", attribute.String("order_id", orderID))
	defer span.End()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.HasShipment() {
		return ErrNoShipment
	}
	shipmentID := *order.PacketaShipmentID

	if err := s.carrier.CancelPacket(ctx, shipmentID); err != nil {
		util.RecordError(span, err)
		return err
	}
	if err := s.orders.ClearShipment(ctx, order.ID, models.OrderStatusPaid); err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to clear shipment: %w", err)
	}

	s.logger.Info("Shipment cancelled",
		zap.String("order_id", order.ID),
		zap.String("shipment_id", shipmentID))
	s.publishShipment(ctx, models.EventTypeShipmentCancelled, order.ID, shipmentID)
	return nil
}

func (s *ShipmentService) packetAttributes(order *models.Order) (carrier.PacketAttributes, error) {
	first, last := splitName(order.CustomerName)
	attrs := carrier.PacketAttributes{
		Number:  order.ID,
		Name:    first,
		Surname: last,
		Email:   order.CustomerEmail,
		Phone:   order.CustomerPhone,
		Value:   float64(order.AmountTotal) / 100,
	}

	switch order.DeliveryMethod {
	case models.DeliveryHomeDelivery:
		if order.DeliveryAddress == nil || order.DeliveryCity == nil || order.DeliveryPostalCode == nil {
			return attrs, fmt.Errorf("%w: home delivery address incomplete", ErrInvalidInput)
		}
		attrs.AddressID = s.homeDeliveryCarrierID
		attrs.Street = *order.DeliveryAddress
		attrs.City = *order.DeliveryCity
		attrs.Zip = *order.DeliveryPostalCode
		if order.DeliveryCountry != nil {
			attrs.Country = *order.DeliveryCountry
		}
	default:
		if order.PacketaPointID == nil || *order.PacketaPointID == "" {
			return attrs, fmt.Errorf("%w: pickup point missing", ErrInvalidInput)
		}
		attrs.AddressID = *order.PacketaPointID
	}
	return attrs, nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (s *ShipmentService) publishShipment(ctx context.Context, eventType, orderID, shipmentID string) {
	event := &models.ShipmentEvent{
		BaseEvent:  newBaseEvent(eventType, s.now()),
		OrderID:    orderID,
		ShipmentID: shipmentID,
	}
	if err := s.events.PublishShipment(ctx, event); err != nil {
		s.logger.Warn("Failed to publish shipment event",
			zap.String("event_type", eventType),
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}

func (s *ShipmentService) notify(ctx context.Context, n *models.NotificationEvent) {
	if err := s.events.PublishNotification(ctx, n); err != nil {
		s.logger.Warn("Failed to send notification",
			zap.String("order_id", n.OrderID),
			zap.String("template", n.Template),
			zap.Error(err))
	}
}
