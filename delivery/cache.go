package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-restaurant-ordering/models"

	"github.com/redis/go-redis/v9"
)

const DefaultCacheTTL = 10 * time.Minute

// RedisQuoteCache keeps computed quotes in Redis. Fallback quotes are never stored.
type RedisQuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisQuoteCache(client *redis.Client, ttl time.Duration) *RedisQuoteCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisQuoteCache{client: client, ttl: ttl}
}

func quoteKey(address, branchID string) string {
	return fmt.Sprintf("delivery:quote:%s:%s", branchID, models.NormalizeAddress(address))
}

func (c *RedisQuoteCache) Get(ctx context.Context, address, branchID string) (models.DeliveryFeeQuote, bool, error) {
	data, err := c.client.Get(ctx, quoteKey(address, branchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.DeliveryFeeQuote{}, false, nil
	}
	if err != nil {
		return models.DeliveryFeeQuote{}, false, fmt.Errorf("get quote: %w", err)
	}
	var q models.DeliveryFeeQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return models.DeliveryFeeQuote{}, false, fmt.Errorf("decode quote: %w", err)
	}
	return q, true, nil
}

func (c *RedisQuoteCache) Set(ctx context.Context, q models.DeliveryFeeQuote) error {
	if q.Fallback {
		return nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	if err := c.client.Set(ctx, quoteKey(q.Address, q.BranchID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set quote: %w", err)
	}
	return nil
}
