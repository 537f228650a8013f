package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process keyed mutex. Entries are removed once no
// goroutine holds or waits for the key.
type LocalLocker struct {
	wait time.Duration

	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker returns a locker whose waiters give up after wait. A zero
// wait means callers wait until their context ends.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, keys: make(map[string]*keyLock)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return withAcquirer(ctx, l, key, fn)
}

func (l *LocalLocker) acquire(ctx context.Context, key string) (held, error) {
	l.mu.Lock()
	k, ok := l.keys[key]
	if !ok {
		k = &keyLock{sem: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case k.sem <- struct{}{}:
		return held{
			ctx: ctx,
			release: func() {
				<-k.sem
				l.unref(key, k)
			},
		}, nil
	case <-ctx.Done():
		l.unref(key, k)
		return held{}, ctx.Err()
	case <-timeout:
		l.unref(key, k)
		return held{}, ErrLockNotAcquired
	}
}

func (l *LocalLocker) unref(key string, k *keyLock) {
	l.mu.Lock()
	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
