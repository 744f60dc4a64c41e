package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/decrement_stock.lua
var decrementStockScript string

// DecrementResult is the outcome of one atomic stock decrement.
type DecrementResult int

const (
	DecrementUnknownSKU   DecrementResult = -1
	DecrementInsufficient DecrementResult = 0
	DecrementApplied      DecrementResult = 1
)

type Client struct {
	rdb             *redis.Client
	decrementScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:             rdb,
		decrementScript: redis.NewScript(decrementStockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func stockKey(productID, size string) string {
	return fmt.Sprintf("inventory:%s:%s", productID, size)
}

// DecrementStock atomically takes quantity units of (productID, size)
func (c *Client) DecrementStock(ctx context.Context, productID, size string, quantity int) (DecrementResult, error) {
	result, err := c.decrementScript.Run(ctx, c.rdb, []string{stockKey(productID, size)}, quantity).Result()
	if err != nil {
		return DecrementInsufficient, fmt.Errorf("decrement stock script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return DecrementInsufficient, fmt.Errorf("unexpected script result type %T", result)
	}

	return DecrementResult(code), nil
}

// SetStock overwrites the available count for (productID, size)
func (c *Client) SetStock(ctx context.Context, productID, size string, available int) error {
	return c.rdb.HSet(ctx, stockKey(productID, size), "available", available).Err()
}

// GetStock retrieves the available count for (productID, size)
func (c *Client) GetStock(ctx context.Context, productID, size string) (int, error) {
	val, err := c.rdb.HGet(ctx, stockKey(productID, size), "available").Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("inventory not found for %s/%s", productID, size)
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}
