// Package lock provides per-key mutual exclusion for check-and-write
// sections of the booking engine.
package lock

import (
	"context"
	"errors"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding the lock for key. fn receives a context that
// is cancelled no later than the lock's lease expiry.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// acquirer is the primitive shared by the lock implementations: take the
// lock for key or fail. On success it returns the context the critical
// section must run under and the func that releases the lock.
type acquirer interface {
	acquire(ctx context.Context, key string) (held, error)
}

type held struct {
	ctx     context.Context
	release func()
}

func withAcquirer(ctx context.Context, a acquirer, key string, fn func(ctx context.Context) error) error {
	h, err := a.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer h.release()
	return fn(h.ctx)
}
