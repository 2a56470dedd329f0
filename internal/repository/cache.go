package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/config"
	"github.com/shopmesh/orders-service/internal/models"
)

const (
	orderKeyPrefix  = "order:"
	defaultCacheTTL = 5 * time.Minute
)

// RedisOrderCache implements OrderCache using Redis. Cache misses return
// (nil, nil); callers fall through to the store.
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisOrderCache creates a new Redis-based order cache.
func NewRedisOrderCache(cfg config.RedisConfig, logger *zap.Logger) *RedisOrderCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	return &RedisOrderCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("order-cache"),
	}
}

var _ OrderCache = (*RedisOrderCache)(nil)

// Get retrieves an order from cache.
func (c *RedisOrderCache) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	key := orderKeyPrefix + id.String()

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss", zap.String("order_id", id.String()))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", zap.String("order_id", id.String()))
	return &order, nil
}

// Set stores an order in cache.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	key := orderKeyPrefix + order.ID.String()

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Delete removes an order from cache.
func (c *RedisOrderCache) Delete(ctx context.Context, id uuid.UUID) error {
	key := orderKeyPrefix + id.String()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("Cache delete error",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Ping checks connectivity for readiness probes.
func (c *RedisOrderCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
