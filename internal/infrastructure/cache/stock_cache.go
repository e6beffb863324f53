package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"liquorstock/internal/core/types"
	"liquorstock/internal/domain/ledger"
)

var _ ledger.StockCache = (*StockCache)(nil)

// StockCache keeps StockAsOf answers in one Redis hash per item, keyed by
// date. Invalidate drops the whole hash.
//
// A lookup racing a posting can write an answer computed before the posting
// committed. The hash expires one TTL after its first field was written, so
// such an answer survives at most that long. ExpireNX needs Redis 7.
type StockCache struct {
	rdb    redis.Cmdable
	prefix string
}

// NewStockCache creates a stock cache. prefix namespaces the keys.
func NewStockCache(rdb redis.Cmdable, prefix string) *StockCache {
	if prefix == "" {
		prefix = "stock"
	}
	return &StockCache{rdb: rdb, prefix: prefix}
}

func (c *StockCache) itemKey(companyID int64, itemCode string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, companyID, itemCode)
}

func dateField(t time.Time) string {
	return t.Format(time.DateOnly)
}

func (c *StockCache) Get(ctx context.Context, key ledger.StockKey) (types.Quantity, bool, error) {
	val, err := c.rdb.HGet(ctx, c.itemKey(key.CompanyID, key.ItemCode), dateField(key.Date)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis hget: %w", err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("cached stock %q: %w", val, err)
	}
	return types.Quantity(n), true, nil
}

func (c *StockCache) Set(ctx context.Context, key ledger.StockKey, q types.Quantity, ttl time.Duration) error {
	hkey := c.itemKey(key.CompanyID, key.ItemCode)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hkey, dateField(key.Date), q.Int64())
		if ttl > 0 {
			// NX: a later Set must not push the deadline back, or a stale
			// field would outlive the TTL.
			pipe.ExpireNX(ctx, hkey, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (c *StockCache) Invalidate(ctx context.Context, companyID int64, itemCode string) error {
	if err := c.rdb.Del(ctx, c.itemKey(companyID, itemCode)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
