package memory

import (
	"context"
	"sync"
	"time"

	"liquorstock/internal/domain/ledger"
)

// Locker is an in-process ledger.Locker with expiring keys.
type Locker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

var _ ledger.Locker = (*Locker)(nil)

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]time.Time), now: time.Now}
}

func (l *Locker) Obtain(_ context.Context, key string, ttl time.Duration) (ledger.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[key]; ok && l.now().Before(exp) {
		return nil, ledger.ErrLockNotObtained
	}
	l.held[key] = l.now().Add(ttl)
	return &lock{l: l, key: key}, nil
}

type lock struct {
	l   *Locker
	key string
}

func (k *lock) Release(context.Context) error {
	k.l.mu.Lock()
	defer k.l.mu.Unlock()
	delete(k.l.held, k.key)
	return nil
}
