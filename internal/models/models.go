package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Order is the persisted result of a completed checkout.
type Order struct {
	ID                 string     `db:"id" json:"id"`
	StripeSessionID    string     `db:"stripe_session_id" json:"stripe_session_id"`
	InvoiceID          *string    `db:"invoice_id" json:"invoice_id,omitempty"`
	CustomerEmail      string     `db:"customer_email" json:"customer_email"`
	CustomerName       string     `db:"customer_name" json:"customer_name"`
	CustomerPhone      string     `db:"customer_phone" json:"customer_phone"`
	DeliveryMethod     string     `db:"delivery_method" json:"delivery_method"`
	DeliveryAddress    *string    `db:"delivery_address" json:"delivery_address,omitempty"`
	DeliveryCity       *string    `db:"delivery_city" json:"delivery_city,omitempty"`
	DeliveryPostalCode *string    `db:"delivery_postal_code" json:"delivery_postal_code,omitempty"`
	DeliveryCountry    *string    `db:"delivery_country" json:"delivery_country,omitempty"`
	PacketaPointID     *string    `db:"packeta_point_id" json:"packeta_point_id,omitempty"`
	PacketaShipmentID  *string    `db:"packeta_shipment_id" json:"packeta_shipment_id,omitempty"`
	Status             string     `db:"status" json:"status"`
	AmountTotal        int64      `db:"amount_total" json:"amount_total"`
	ShippingAmount     *int64     `db:"shipping_amount" json:"shipping_amount,omitempty"`
	Items              LineItems  `db:"items" json:"items"`
	LabelPrintedAt     *time.Time `db:"label_printed_at" json:"label_printed_at,omitempty"`
	LabelPrintCount    int        `db:"label_print_count" json:"label_print_count"`

	// Version is bumped on every update but never compared; writes are
	// last-writer-wins until a caller starts enforcing it.
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasShipment reports whether a carrier packet exists for the order.
func (o *Order) HasShipment() bool {
	return o.PacketaShipmentID != nil && *o.PacketaShipmentID != ""
}

// LineItem is a purchased product line with shipping pseudo-lines removed.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	AmountTotal int64  `json:"amount_total"`
	ProductID   string `json:"product_id,omitempty"`
	Size        string `json:"size,omitempty"`
}

// LineItems is stored as a JSON array on the order row.
type LineItems []LineItem

// Value implements driver.Valuer
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *LineItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = LineItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported items column type %T", src)
	}
	return json.Unmarshal(raw, l)
}

// StockItem is one inventory decrement request.
type StockItem struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name,omitempty"`
}

// InventoryRecord mirrors a row of the inventory table.
type InventoryRecord struct {
	ProductID string    `db:"product_id" json:"product_id"`
	Size      string    `db:"size" json:"size"`
	Available int       `db:"available" json:"available"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusNew        = "new"
	OrderStatusPaid       = "paid"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Delivery methods
const (
	DeliveryPickup       = "pickup"
	DeliveryHomeDelivery = "home_delivery"
)
