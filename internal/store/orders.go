package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment-service/internal/models"

	"github.com/lib/pq"
)

const columnShippingAmount = "shipping_amount"

// pq code for undefined_column
const pqUndefinedColumn = "42703"

// InsertOrder writes a new order row. withShipping controls whether the
// optional shipping_amount column is part of the statement.
func (s *Store) InsertOrder(ctx context.Context, order *models.Order, withShipping bool) error {
	cols := []string{
		"id", "stripe_session_id", "invoice_id",
		"customer_email", "customer_name", "customer_phone",
		"delivery_method", "delivery_address", "delivery_city", "delivery_postal_code", "delivery_country",
		"packeta_point_id", "status", "amount_total", "items",
	}
	args := []interface{}{
		order.ID, order.StripeSessionID, order.InvoiceID,
		order.CustomerEmail, order.CustomerName, order.CustomerPhone,
		order.DeliveryMethod, order.DeliveryAddress, order.DeliveryCity, order.DeliveryPostalCode, order.DeliveryCountry,
		order.PacketaPointID, order.Status, order.AmountTotal, order.Items,
	}
	if withShipping && order.ShippingAmount != nil {
		cols = append(cols, columnShippingAmount)
		args = append(args, *order.ShippingAmount)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO orders (%s) VALUES (%s) RETURNING created_at, updated_at",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	return s.db.QueryRowxContext(ctx, query, args...).Scan(&order.CreatedAt, &order.UpdatedAt)
}

// IsMissingShippingColumn reports whether err says the orders table has no
// shipping_amount column.
func IsMissingShippingColumn(err error) bool {
	return isUndefinedColumn(err, columnShippingAmount)
}

func isUndefinedColumn(err error, column string) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUndefinedColumn && strings.Contains(pqErr.Message, column)
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, column) {
		return false
	}
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "could not find")
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.reader().GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByIDs retrieves the orders matching ids, in no particular order
func (s *Store) GetOrdersByIDs(ctx context.Context, ids []string) ([]models.Order, error) {
	if len(ids) == 0 {
		return []models.Order{}, nil
	}

	var orders []models.Order
	err := s.reader().SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE id = ANY($1)", pq.Array(ids))
	return orders, err
}

// GetOrdersBySessionID retrieves every order created for a payment session
func (s *Store) GetOrdersBySessionID(ctx context.Context, sessionID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.reader().SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE stripe_session_id = $1 ORDER BY created_at", sessionID)
	return orders, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	return s.execOne(ctx,
		"UPDATE orders SET status = $1, version = version + 1, updated_at = NOW() WHERE id = $2",
		status, orderID)
}

// SetShipment stores the carrier packet id and moves the order to status
func (s *Store) SetShipment(ctx context.Context, orderID, shipmentID, status string) error {
	return s.execOne(ctx,
		"UPDATE orders SET packeta_shipment_id = $1, status = $2, version = version + 1, updated_at = NOW() WHERE id = $3",
		shipmentID, status, orderID)
}

// ClearShipment drops the carrier packet id and reverts the status
func (s *Store) ClearShipment(ctx context.Context, orderID, status string) error {
	return s.execOne(ctx,
		"UPDATE orders SET packeta_shipment_id = NULL, status = $1, version = version + 1, updated_at = NOW() WHERE id = $2",
		status, orderID)
}

// MarkLabelsPrinted stamps the print time and bumps the print counter.
// Concurrent prints both increment, so the count is an indicator only.
func (s *Store) MarkLabelsPrinted(ctx context.Context, orderIDs []string, at time.Time) error {
	if len(orderIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders
		SET label_printed_at = $1,
			label_print_count = COALESCE(label_print_count, 0) + 1,
			version = version + 1,
			updated_at = NOW()
		WHERE id = ANY($2)`,
		at, pq.Array(orderIDs))
	return err
}

func (s *Store) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
