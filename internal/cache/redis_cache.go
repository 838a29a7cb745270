package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisStockCache struct {
	client *redis.Client
}

func NewRedisStockCache(addr string, password string, db int) *RedisStockCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStockCache{client: client}
}

func (c *RedisStockCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStockCache) Close() error {
	return c.client.Close()
}

// Per-modifier levels live under the product's key as hash fields so that a
// single DEL invalidates the product and all of its modifiers together.
func stockKey(productID string) string {
	return fmt.Sprintf("stock:%s", productID)
}

func stockField(modifierID string) string {
	if modifierID == "" {
		return "_product"
	}
	return modifierID
}

func (c *RedisStockCache) Get(ctx context.Context, productID string, modifierID string) (int, bool, error) {
	val, err := c.client.HGet(ctx, stockKey(productID), stockField(modifierID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	stock, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}

func (c *RedisStockCache) Set(ctx context.Context, productID string, modifierID string, stock int, ttl time.Duration) error {
	key := stockKey(productID)
	if err := c.client.HSet(ctx, key, stockField(modifierID), strconv.Itoa(stock)).Err(); err != nil {
		return err
	}
	if ttl > 0 {
		return c.client.Expire(ctx, key, ttl).Err()
	}
	return nil
}

func (c *RedisStockCache) Invalidate(ctx context.Context, productID string) error {
	return c.client.Del(ctx, stockKey(productID)).Err()
}
