package service

import (
	"context"
	"testing"

	"fulfillment-service/internal/carrier"
	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pickupOrder() *models.Order {
	return &models.Order{
		ID:             "o1",
		CustomerName:   "Jana Nováková Šťastná",
		CustomerEmail:  "jana@example.com",
		DeliveryMethod: models.DeliveryPickup,
		PacketaPointID: strPtr("12345"),
		Status:         models.OrderStatusPaid,
		AmountTotal:    2279,
	}
}

func TestCreateShipment(t *testing.T) {
	ctx := context.Background()

	t.Run("Pickup", func(t *testing.T) {
		orders := newFakeOrderStore(pickupOrder())
		c := &fakePacketCarrier{}
		events := &fakeEvents{}
		svc := NewShipmentService(orders, c, events, "106")

		order, err := svc.CreateShipment(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, "4400000099", *order.PacketaShipmentID)
		assert.Equal(t, models.OrderStatusProcessing, order.Status)

		require.Len(t, c.created, 1)
		attrs := c.created[0]
		assert.Equal(t, "o1", attrs.Number)
		assert.Equal(t, "Jana", attrs.Name)
		assert.Equal(t, "Nováková Šťastná", attrs.Surname)
		assert.Equal(t, "12345", attrs.AddressID)
		assert.InDelta(t, 22.79, attrs.Value, 0.001)

		stored, _ := orders.GetOrderByID(ctx, "o1")
		assert.True(t, stored.HasShipment())
		assert.Equal(t, 1, stored.Version)
		require.Len(t, events.shipments, 1)
		assert.Equal(t, models.EventTypeShipmentCreated, events.shipments[0].EventType)
		require.Len(t, events.notifications, 1)
		assert.Equal(t, TemplateShipmentCreated, events.notifications[0].Template)
	})

	t.Run("HomeDelivery", func(t *testing.T) {
		o := pickupOrder()
		o.DeliveryMethod = models.DeliveryHomeDelivery
		o.PacketaPointID = nil
		o.DeliveryAddress = strPtr("Dlouhá 12")
		o.DeliveryCity = strPtr("Praha")
		o.DeliveryPostalCode = strPtr("11000")
		c := &fakePacketCarrier{}

		_, err := NewShipmentService(newFakeOrderStore(o), c, &fakeEvents{}, "106").CreateShipment(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, "106", c.created[0].AddressID)
		assert.Equal(t, "Dlouhá 12", c.created[0].Street)
		assert.Equal(t, "11000", c.created[0].Zip)
	})

	t.Run("IncompleteAddress", func(t *testing.T) {
		o := pickupOrder()
		o.DeliveryMethod = models.DeliveryHomeDelivery
		c := &fakePacketCarrier{}

		_, err := NewShipmentService(newFakeOrderStore(o), c, &fakeEvents{}, "106").CreateShipment(ctx, "o1")
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Empty(t, c.created)
	})

	t.Run("AlreadyShipped", func(t *testing.T) {
		o := pickupOrder()
		o.PacketaShipmentID = strPtr("1")
		_, err := NewShipmentService(newFakeOrderStore(o), &fakePacketCarrier{}, &fakeEvents{}, "106").CreateShipment(ctx, "o1")
		assert.ErrorIs(t, err, ErrShipmentExists)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := NewShipmentService(newFakeOrderStore(), &fakePacketCarrier{}, &fakeEvents{}, "106").CreateShipment(ctx, "o1")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("CarrierFault", func(t *testing.T) {
		c := &fakePacketCarrier{createErr: &carrier.FaultError{Fault: "PacketAttributesFault"}}
		orders := newFakeOrderStore(pickupOrder())
		_, err := NewShipmentService(orders, c, &fakeEvents{}, "106").CreateShipment(ctx, "o1")
		assert.ErrorIs(t, err, carrier.ErrFault)

		stored, _ := orders.GetOrderByID(ctx, "o1")
		assert.False(t, stored.HasShipment())
	})

	t.Run("StoreFailureAfterCarrier", func(t *testing.T) {
		orders := newFakeOrderStore(pickupOrder())
		orders.setShipmentErr = errBoom
		_, err := NewShipmentService(orders, &fakePacketCarrier{}, &fakeEvents{}, "106").CreateShipment(ctx, "o1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "4400000099")
	})
}

func TestCancelShipment(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		o := pickupOrder()
		o.PacketaShipmentID = strPtr("4400000001")
		o.Status = models.OrderStatusProcessing
		orders := newFakeOrderStore(o)
		c := &fakePacketCarrier{}
		events := &fakeEvents{}

		require.NoError(t, NewShipmentService(orders, c, events, "106").CancelShipment(ctx, "o1"))
		assert.Equal(t, []string{"4400000001"}, c.cancelled)

		stored, _ := orders.GetOrderByID(ctx, "o1")
		assert.False(t, stored.HasShipment())
		assert.Equal(t, models.OrderStatusPaid, stored.Status)
		assert.Equal(t, models.EventTypeShipmentCancelled, events.shipments[0].EventType)
	})

	t.Run("NoShipment", func(t *testing.T) {
		err := NewShipmentService(newFakeOrderStore(pickupOrder()), &fakePacketCarrier{}, &fakeEvents{}, "106").CancelShipment(ctx, "o1")
		assert.ErrorIs(t, err, ErrNoShipment)
	})

	t.Run("CarrierRefuses", func(t *testing.T) {
		o := pickupOrder()
		o.PacketaShipmentID = strPtr("4400000001")
		orders := newFakeOrderStore(o)
		c := &fakePacketCarrier{cancelErr: &carrier.FaultError{Fault: "CancelNotAllowedFault"}}

		err := NewShipmentService(orders, c, &fakeEvents{}, "106").CancelShipment(ctx, "o1")
		assert.ErrorIs(t, err, carrier.ErrFault)
		assert.Empty(t, orders.shipmentCleared)
	})
}
