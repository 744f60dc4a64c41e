package store

import (
	"context"

	"fulfillment-service/internal/models"
)

// GetInventory retrieves every stock row
func (s *Store) GetInventory(ctx context.Context) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	err := s.reader().SelectContext(ctx, &records,
		"SELECT * FROM inventory ORDER BY product_id, size")
	return records, err
}

// DecrementStock takes quantity units of (productID, size) if that many are
// available. It returns false when the row is missing or short on stock.
func (s *Store) DecrementStock(ctx context.Context, productID, size string, quantity int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inventory SET available = available - $1, updated_at = NOW()
		WHERE product_id = $2 AND size = $3 AND available >= $1`,
		quantity, productID, size)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
