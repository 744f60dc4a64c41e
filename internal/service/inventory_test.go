package service

import (
	"context"
	"testing"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectStockItems(t *testing.T) {
	reconciled := []models.LineItem{
		{Description: "Mikina", Quantity: 2, ProductID: "hoodie", Size: "M"},
		{Description: "Čepice", Quantity: 1, ProductID: "cap"},
		{Description: "Poukaz", Quantity: 1},
	}

	t.Run("CartWins", func(t *testing.T) {
		cart := `[{"productId":"hoodie-black","size":"L","quantity":1,"name":"Mikina"},{"productId":"","size":"M","quantity":1}]`
		sel := SelectStockItems(cart, reconciled)

		assert.Equal(t, ItemsFromCart, sel.Source)
		require.Len(t, sel.Items, 1)
		assert.Equal(t, "hoodie-black", sel.Items[0].ProductID)
	})

	t.Run("HeuristicFallback", func(t *testing.T) {
		sel := SelectStockItems("", reconciled)

		assert.Equal(t, ItemsFromProviderHeuristic, sel.Source)
		require.Len(t, sel.Items, 1)
		assert.Equal(t, models.StockItem{ProductID: "hoodie", Size: "M", Quantity: 2, Name: "Mikina"}, sel.Items[0])
	})

	t.Run("UnreadableCartFallsBack", func(t *testing.T) {
		sel := SelectStockItems("{not json", reconciled)
		assert.Equal(t, ItemsFromProviderHeuristic, sel.Source)
	})

	t.Run("NothingIdentifiable", func(t *testing.T) {
		sel := SelectStockItems("[]", []models.LineItem{{Description: "Poukaz", Quantity: 1}})
		assert.Equal(t, ItemsNone, sel.Source)
		assert.Empty(t, sel.Items)
	})
}

func TestInventoryAdjuster_Adjust(t *testing.T) {
	ctx := context.Background()
	items := []models.StockItem{
		{ProductID: "hoodie", Size: "M", Quantity: 2},
		{ProductID: "hoodie", Size: "XXL", Quantity: 1},
		{ProductID: "cap", Size: "UNI", Quantity: 1},
	}

	t.Run("ContinuesPastFailures", func(t *testing.T) {
		db := &fakeStockStore{available: map[stockKey]int{
			{"hoodie", "M"}:  5,
			{"hoodie", "XXL"}: 0,
			{"cap", "UNI"}:   1,
		}}
		a := NewInventoryAdjuster(nil, db)

		res := a.Adjust(ctx, items)
		assert.False(t, res.Success)
		require.Len(t, res.Updated, 2)
		assert.Equal(t, "hoodie", res.Updated[0].ProductID)
		assert.Equal(t, "cap", res.Updated[1].ProductID)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, "XXL", res.Failed[0].Item.Size)
		assert.Equal(t, "insufficient_stock", res.Failed[0].Reason)
		assert.Equal(t, 3, db.available[stockKey{"hoodie", "M"}])
	})

	t.Run("AllApplied", func(t *testing.T) {
		db := &fakeStockStore{available: map[stockKey]int{{"hoodie", "M"}: 2}}
		res := NewInventoryAdjuster(nil, db).Adjust(ctx, items[:1])
		assert.True(t, res.Success)
		assert.Len(t, res.Updated, 1)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		db := &fakeStockStore{err: errBoom}
		res := NewInventoryAdjuster(nil, db).Adjust(ctx, items)
		assert.False(t, res.Success)
		assert.Len(t, res.Failed, 3)
		assert.Equal(t, "error", res.Failed[0].Reason)
	})

	t.Run("RedisFastPathWritesThrough", func(t *testing.T) {
		cache := &fakeStockCache{stock: map[stockKey]int{{"hoodie", "M"}: 5}}
		db := &fakeStockStore{available: map[stockKey]int{{"hoodie", "M"}: 5}}

		res := NewInventoryAdjuster(cache, db).Adjust(ctx, items[:1])
		assert.True(t, res.Success)
		assert.Equal(t, 3, cache.stock[stockKey{"hoodie", "M"}])
		assert.Equal(t, 3, db.available[stockKey{"hoodie", "M"}])
	})

	t.Run("TableBehindRedisReadsCacheForDrift", func(t *testing.T) {
		cache := &fakeStockCache{stock: map[stockKey]int{{"hoodie", "M"}: 5}}
		db := &fakeStockStore{available: map[stockKey]int{{"hoodie", "M"}: 1}}

		res := NewInventoryAdjuster(cache, db).Adjust(ctx, items[:1])
		assert.True(t, res.Success)
		assert.Equal(t, 1, db.available[stockKey{"hoodie", "M"}])
		assert.Equal(t, []stockKey{{"hoodie", "M"}}, cache.reads)
	})

	t.Run("WriteThroughSkipsCacheReadWhenInSync", func(t *testing.T) {
		cache := &fakeStockCache{stock: map[stockKey]int{{"hoodie", "M"}: 5}}
		db := &fakeStockStore{available: map[stockKey]int{{"hoodie", "M"}: 5}}

		NewInventoryAdjuster(cache, db).Adjust(ctx, items[:1])
		assert.Empty(t, cache.reads)
	})

	t.Run("RedisInsufficientIsFinal", func(t *testing.T) {
		cache := &fakeStockCache{stock: map[stockKey]int{{"hoodie", "M"}: 1}}
		db := &fakeStockStore{available: map[stockKey]int{{"hoodie", "M"}: 10}}

		res := NewInventoryAdjuster(cache, db).Adjust(ctx, items[:1])
		assert.False(t, res.Success)
		assert.Equal(t, 0, db.calls)
	})

	t.Run("UnknownSKUInRedisUsesDB", func(t *testing.T) {
		cache := &fakeStockCache{stock: map[stockKey]int{}}
		db := &fakeStockStore{available: map[stockKey]int{{"cap", "UNI"}: 1}}

		res := NewInventoryAdjuster(cache, db).Adjust(ctx, items[2:])
		assert.True(t, res.Success)
		assert.Equal(t, 0, db.available[stockKey{"cap", "UNI"}])
	})

	t.Run("RedisDownUsesDB", func(t *testing.T) {
		cache := &fakeStockCache{err: errBoom}
		db := &fakeStockStore{available: map[stockKey]int{{"cap", "UNI"}: 1}}

		res := NewInventoryAdjuster(cache, db).Adjust(ctx, items[2:])
		assert.True(t, res.Success)
		assert.Equal(t, 1, db.calls)
	})
}

func TestInventoryAdjuster_SyncInventoryToRedis(t *testing.T) {
	cache := &fakeStockCache{}
	db := &fakeStockStore{available: map[stockKey]int{{"hoodie", "M"}: 4, {"cap", "UNI"}: 0}}

	require.NoError(t, NewInventoryAdjuster(cache, db).SyncInventoryToRedis(context.Background()))
	assert.Equal(t, map[stockKey]int{{"hoodie", "M"}: 4, {"cap", "UNI"}: 0}, cache.seeded)

	assert.NoError(t, NewInventoryAdjuster(nil, db).SyncInventoryToRedis(context.Background()))
	assert.Error(t, NewInventoryAdjuster(cache, &fakeStockStore{err: errBoom}).SyncInventoryToRedis(context.Background()))
}
