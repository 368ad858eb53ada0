// Package cache keeps recently resolved quotes so that repeated refreshes
// inside the cache window do not hit the price sources again.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type QuoteCache interface {
	// Get returns the cached price for ticker. ok is false on a miss.
	Get(ctx context.Context, ticker string) (price decimal.Decimal, ok bool, err error)
	Set(ctx context.Context, ticker string, price decimal.Decimal, ttl time.Duration) error
}

type memoryEntry struct {
	price   decimal.Decimal
	expires time.Time
}

// MemoryQuoteCache is the in-process QuoteCache used when no Redis is
// configured.
type MemoryQuoteCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryQuoteCache() *MemoryQuoteCache {
	return &MemoryQuoteCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryQuoteCache) Get(_ context.Context, ticker string) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ticker]
	if !ok {
		return decimal.Zero, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, ticker)
		return decimal.Zero, false, nil
	}
	return e.price, true, nil
}

func (c *MemoryQuoteCache) Set(_ context.Context, ticker string, price decimal.Decimal, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.entries[ticker] = memoryEntry{price: price, expires: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

var _ QuoteCache = (*MemoryQuoteCache)(nil)
