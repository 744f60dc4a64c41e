package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// StockSource records where the list of items to decrement came from.
type StockSource string

const (
	ItemsFromCart              StockSource = "cart"
	ItemsFromProviderHeuristic StockSource = "provider_heuristic"
	ItemsNone                  StockSource = "none"
)

type StockSelection struct {
	Source StockSource
	Items  []models.StockItem
}

// SelectStockItems prefers the cart snapshot captured at checkout and falls
// back to identifiers guessed from provider lines. Items without both a
// product id and a size are dropped.
func SelectStockItems(cartJSON string, reconciled []models.LineItem) StockSelection {
	if items := cartStockItems(cartJSON); len(items) > 0 {
		return StockSelection{Source: ItemsFromCart, Items: items}
	}

	var items []models.StockItem
	for _, li := range reconciled {
		if li.ProductID == "" || li.Size == "" {
			continue
		}
		items = append(items, models.StockItem{
			ProductID: li.ProductID,
			Size:      li.Size,
			Quantity:  li.Quantity,
			Name:      li.Description,
		})
	}
	if len(items) > 0 {
		return StockSelection{Source: ItemsFromProviderHeuristic, Items: items}
	}
	return StockSelection{Source: ItemsNone}
}

func cartStockItems(raw string) []models.StockItem {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var cart []models.StockItem
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		util.GetLogger().Warn("Ignoring unreadable cart metadata", zap.Error(err))
		return nil
	}

	items := cart[:0]
	for _, it := range cart {
		if it.ProductID == "" || it.Size == "" || it.Quantity < 1 {
			continue
		}
		items = append(items, it)
	}
	return items
}

// StockCache is the Redis fast path.
type StockCache interface {
	DecrementStock(ctx context.Context, productID, size string, quantity int) (redisclient.DecrementResult, error)
	SetStock(ctx context.Context, productID, size string, available int) error
	GetStock(ctx context.Context, productID, size string) (int, error)
}

// StockStore is the authoritative inventory table.
type StockStore interface {
	DecrementStock(ctx context.Context, productID, size string, quantity int) (bool, error)
	GetInventory(ctx context.Context) ([]models.InventoryRecord, error)
}

type StockFailure struct {
	Item   models.StockItem
	Reason string
}

// AdjustResult is the per-batch outcome. Success is true only when every
// item was decremented.
type AdjustResult struct {
	Success bool
	Updated []models.StockItem
	Failed  []StockFailure
}

// InventoryAdjuster decrements stock item by item and never stops at the
// first failure.
type InventoryAdjuster struct {
	cache  StockCache
	store  StockStore
	logger *zap.Logger
}

// NewInventoryAdjuster accepts a nil cache, in which case every decrement
// goes to the database.
func NewInventoryAdjuster(cache StockCache, store StockStore) *InventoryAdjuster {
	return &InventoryAdjuster{
		cache:  cache,
		store:  store,
		logger: util.GetLogger(),
	}
}

func (a *InventoryAdjuster) Adjust(ctx context.Context, items []models.StockItem) *AdjustResult {
	ctx, span := util.StartSpan(ctx, "InventoryAdjuster.Adjust")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventoryAdjustLatency.Observe(time.Since(start).Seconds())
	}()

	result := &AdjustResult{}
	for _, item := range items {
		reason, err := a.decrement(ctx, item)
		if reason == "" {
			util.InventoryAdjustmentsTotal.WithLabelValues("applied").Inc()
			result.Updated = append(result.Updated, item)
			continue
		}

		util.InventoryAdjustmentsTotal.WithLabelValues(reason).Inc()
		result.Failed = append(result.Failed, StockFailure{Item: item, Reason: reason})
		a.logger.Warn("Stock decrement failed",
			zap.String("product_id", item.ProductID),
			zap.String("size", item.Size),
			zap.Int("quantity", item.Quantity),
			zap.String("reason", reason),
			zap.Error(err))
	}

	result.Success = len(result.Failed) == 0
	return result
}

// decrement returns an empty reason on success.
func (a *InventoryAdjuster) decrement(ctx context.Context, item models.StockItem) (string, error) {
	if a.cache != nil {
		res, err := a.cache.DecrementStock(ctx, item.ProductID, item.Size, item.Quantity)
		switch {
		case err != nil:
			a.logger.Warn("Redis decrement failed, falling back to DB",
				zap.String("product_id", item.ProductID),
				zap.Error(err))
		case res == redisclient.DecrementInsufficient:
			return "insufficient_stock", nil
		case res == redisclient.DecrementApplied:
			a.writeThrough(ctx, item)
			return "", nil
		}
	}

	ok, err := a.store.DecrementStock(ctx, item.ProductID, item.Size, item.Quantity)
	if err != nil {
		return "error", err
	}
	if !ok {
		return "insufficient_stock", nil
	}
	return "", nil
}

// writeThrough mirrors an applied cache decrement into the table.
func (a *InventoryAdjuster) writeThrough(ctx context.Context, item models.StockItem) {
	ok, err := a.store.DecrementStock(ctx, item.ProductID, item.Size, item.Quantity)
	if err == nil && ok {
		return
	}

	fields := []zap.Field{
		zap.String("product_id", item.ProductID),
		zap.String("size", item.Size),
		zap.Bool("applied", ok),
		zap.Error(err),
	}
	if cached, cerr := a.cache.GetStock(ctx, item.ProductID, item.Size); cerr == nil {
		fields = append(fields, zap.Int("redis_available", cached))
	}
	util.InventoryAdjustmentsTotal.WithLabelValues("drift").Inc()
	a.logger.Error("Inventory table out of sync with Redis", fields...)
}

// SyncInventoryToRedis copies the inventory table into the cache.
func (a *InventoryAdjuster) SyncInventoryToRedis(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	a.logger.Info("Starting inventory sync to Redis")

	records, err := a.store.GetInventory(ctx)
	if err != nil {
		return fmt.Errorf("failed to get inventory: %w", err)
	}

	for _, rec := range records {
		if err := a.cache.SetStock(ctx, rec.ProductID, rec.Size, rec.Available); err != nil {
			a.logger.Error("Failed to init Redis inventory",
				zap.String("product_id", rec.ProductID),
				zap.String("size", rec.Size),
				zap.Error(err))
		}
	}

	a.logger.Info("Inventory sync completed", zap.Int("count", len(records)))
	return nil
}
