package models

import "time"

// Event types
const (
	EventTypeCheckoutCompleted = "CHECKOUT_COMPLETED"
	EventTypeOrderCreated      = "ORDER_CREATED"
	EventTypeShipmentCreated   = "SHIPMENT_CREATED"
	EventTypeShipmentCancelled = "SHIPMENT_CANCELLED"
	EventTypeLabelsPrinted     = "LABELS_PRINTED"
	EventTypeNotification      = "NOTIFICATION"
)

// Notification channels
const (
	ChannelEmail = "email"
	ChannelChat  = "chat"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutCompletedEvent carries the completed payment session from the
// webhook to the order worker.
type CheckoutCompletedEvent struct {
	BaseEvent
	Session CheckoutSession `json:"session"`
}

// OrderCreatedEvent published when an order row is committed
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string     `json:"order_id"`
	SessionID     string     `json:"session_id"`
	AmountTotal   int64      `json:"amount_total"`
	Items         []LineItem `json:"items"`
	StockAdjusted bool       `json:"stock_adjusted"`
}

// ShipmentEvent published when a carrier packet is created or cancelled
type ShipmentEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
}

// LabelsPrintedEvent published after a label document was handed out
type LabelsPrintedEvent struct {
	BaseEvent
	OrderIDs []string `json:"order_ids"`
	Mode     string   `json:"mode"`
	URL      string   `json:"url,omitempty"`
}

// NotificationEvent asks the mailer or chat bot to send something.
type NotificationEvent struct {
	BaseEvent
	Channel   string `json:"channel"`
	Recipient string `json:"recipient,omitempty"`
	Template  string `json:"template"`
	OrderID   string `json:"order_id"`
	Order     *Order `json:"order,omitempty"`
}
