package candle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// cacheEntry is the JSON payload stored per cache key.
type cacheEntry struct {
	Symbol    string   `json:"symbol"`
	Interval  Interval `json:"interval"`
	Price     float64  `json:"price"`
	Timestamp int64    `json:"timestamp"`
}

// RedisCache optionally caches get_average_price results so repeated
// live-mode polling of an identical window doesn't refetch candles within
// the TTL. A nil *RedisCache is always a clean miss — caching is optional.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps client. Passing a nil client disables caching.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns a cached average price for (symbol, interval, windowEnd).
func (c *RedisCache) Get(ctx context.Context, symbol string, iv Interval, windowEnd int64) (float64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}

	key := c.key(symbol, iv, windowEnd)
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := c.client.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("candle cache get error, treating as miss")
		}
		return 0, false
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("candle cache unmarshal failed")
		return 0, false
	}
	return entry.Price, true
}

// Set stores the average price for (symbol, interval, windowEnd).
func (c *RedisCache) Set(ctx context.Context, symbol string, iv Interval, windowEnd int64, price float64) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("candle cache not initialized")
	}

	entry := cacheEntry{Symbol: symbol, Interval: iv, Price: price, Timestamp: windowEnd}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal candle cache entry: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.client.Set(cacheCtx, c.key(symbol, iv, windowEnd), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("failed to cache average price")
		return err
	}
	return nil
}

func (c *RedisCache) key(symbol string, iv Interval, windowEnd int64) string {
	return fmt.Sprintf("signalengine:avgprice:%s:%s:%d", symbol, iv, windowEnd)
}
