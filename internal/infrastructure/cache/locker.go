package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"

	"liquorstock/internal/domain/ledger"
)

var _ ledger.Locker = (*Locker)(nil)

// Locker adapts redislock to ledger.Locker.
type Locker struct {
	client *redislock.Client
}

// NewLocker creates a locker on the given Redis client.
func NewLocker(rdb redislock.RedisClient) *Locker {
	return &Locker{client: redislock.New(rdb)}
}

func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (ledger.Lock, error) {
	lock, err := l.client.Obtain(ctx, "lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ledger.ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}
