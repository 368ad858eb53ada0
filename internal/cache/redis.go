package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
}

// RedisQuoteCache stores each quote as a hash at "quote:{ticker}" with
// fields "price" and "ts" (Unix nanoseconds), expiring after the TTL.
type RedisQuoteCache struct {
	rdb *redis.Client
}

// NewRedis connects and pings. The caller owns Close.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisQuoteCache, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisQuoteCache{rdb: rdb}, nil
}

func quoteKey(ticker string) string {
	return "quote:" + ticker
}

func (c *RedisQuoteCache) Get(ctx context.Context, ticker string) (decimal.Decimal, bool, error) {
	vals, err := c.rdb.HGetAll(ctx, quoteKey(ticker)).Result()
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis: get quote %s: %w", ticker, err)
	}
	raw, ok := vals["price"]
	if !ok {
		return decimal.Zero, false, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis: parse quote %s: %w", ticker, err)
	}
	return price, true, nil
}

func (c *RedisQuoteCache) Set(ctx context.Context, ticker string, price decimal.Decimal, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := quoteKey(ticker)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(time.Now().UnixNano(), 10),
	})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", ticker, err)
	}
	return nil
}

func (c *RedisQuoteCache) Close() error {
	return c.rdb.Close()
}

var _ QuoteCache = (*RedisQuoteCache)(nil)
