package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorstock/internal/domain/ledger"
)

func TestStockCacheKeys(t *testing.T) {
	c := NewStockCache(nil, "")
	assert.Equal(t, "stock:7:I1", c.itemKey(7, "I1"))

	c = NewStockCache(nil, "shop")
	assert.Equal(t, "shop:9:RUM-700", c.itemKey(9, "RUM-700"))

	d := time.Date(2025, time.March, 4, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-04", dateField(d))
}

// fakeRedis keeps hashes and per-key TTLs in memory. Only the commands the
// stock cache issues are implemented.
type fakeRedis struct {
	redis.Cmdable
	hashes map[string]map[string]string
	ttls   map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes: make(map[string]map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeRedis) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	return nil, fn(&fakePipe{r: f})
}

func (f *fakeRedis) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	v, ok := f.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.hashes, k)
		delete(f.ttls, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type fakePipe struct {
	redis.Pipeliner
	r *fakeRedis
}

func (p *fakePipe) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	h, ok := p.r.hashes[key]
	if !ok {
		h = make(map[string]string)
		p.r.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = strconv.FormatInt(values[i+1].(int64), 10)
	}
	return redis.NewIntResult(1, nil)
}

func (p *fakePipe) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	p.r.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (p *fakePipe) ExpireNX(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if _, ok := p.r.ttls[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	p.r.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestStockCache_SetKeepsFirstDeadline(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	c := NewStockCache(rdb, "")
	march4 := ledger.StockKey{CompanyID: 7, ItemCode: "I1", Date: time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)}
	march5 := march4
	march5.Date = march4.Date.AddDate(0, 0, 1)

	require.NoError(t, c.Set(ctx, march4, 40, 30*time.Second))
	require.NoError(t, c.Set(ctx, march5, 35, 90*time.Second))
	assert.Equal(t, 30*time.Second, rdb.ttls["stock:7:I1"])

	q, ok, err := c.Get(ctx, march4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 40, q)

	require.NoError(t, c.Invalidate(ctx, 7, "I1"))
	_, ok, err = c.Get(ctx, march5)
	require.NoError(t, err)
	assert.False(t, ok)

	// A recreated hash gets a fresh deadline.
	require.NoError(t, c.Set(ctx, march5, 35, 90*time.Second))
	assert.Equal(t, 90*time.Second, rdb.ttls["stock:7:I1"])
}
