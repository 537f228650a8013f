package lock

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerLocker guards a remote lock with a circuit breaker. While the
// breaker is open, locks are taken from the local fallback instead, so a
// Redis outage degrades cross-process mutual exclusion to the ledger's own
// conditional writes rather than failing every booking.
type BreakerLocker struct {
	remote   acquirer
	fallback *LocalLocker
	cb       *gobreaker.CircuitBreaker[held]
	log      zerolog.Logger
}

type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func NewBreakerLocker(remote *RedisLocker, fallback *LocalLocker, s BreakerSettings, log zerolog.Logger) *BreakerLocker {
	return newBreakerLocker(remote, fallback, s, log)
}

func newBreakerLocker(remote acquirer, fallback *LocalLocker, s BreakerSettings, log zerolog.Logger) *BreakerLocker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	log = log.With().Str("component", "lock_breaker").Logger()

	cb := gobreaker.NewCircuitBreaker[held](gobreaker.Settings{
		Name:        "redis-slot-lock",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.MaxFailures
		},
		// contention and caller cancellation say nothing about Redis health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrLockNotAcquired) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("lock breaker state change")
		},
	})

	return &BreakerLocker{remote: remote, fallback: fallback, cb: cb, log: log}
}

func (l *BreakerLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	h, err := l.cb.Execute(func() (held, error) {
		return l.remote.acquire(ctx, key)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return l.fallback.WithLock(ctx, key, fn)
	}
	if err != nil {
		return err
	}
	defer h.release()
	return fn(h.ctx)
}

// State exposes the breaker state for health reporting.
func (l *BreakerLocker) State() gobreaker.State {
	return l.cb.State()
}
