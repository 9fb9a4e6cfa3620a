package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Cache is a Redis read-through cache for exact-date spot rates. A miss is
// not an error; callers fall through to the rate table.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs the cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func rateKey(from, to string, date time.Time) string {
	return fmt.Sprintf("fx:rate:%s:%s:%s", from, to, date.Format("2006-01-02"))
}

// Get returns the cached rate for the pair and date, if present.
func (c *Cache) Get(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, bool) {
	if c == nil || c.client == nil {
		return decimal.Zero, false
	}
	raw, err := c.client.Get(ctx, rateKey(from, to, date)).Result()
	if err != nil {
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return rate, true
}

// Set stores the rate for the pair and date. Failures are ignored; the cache
// is an optimisation, not a source of truth.
func (c *Cache) Set(ctx context.Context, from, to string, date time.Time, rate decimal.Decimal) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, rateKey(from, to, date), rate.String(), c.ttl).Err()
}
