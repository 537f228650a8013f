package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const retryEvery = 20 * time.Millisecond

// RedisLocker holds a per-key Redis lease (SET NX PX with a random token)
// for the duration of the critical section. Contended keys are retried
// until wait elapses.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	log    zerolog.Logger
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		log:    log.With().Str("component", "redis_lock").Logger(),
	}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return withAcquirer(ctx, l, key, fn)
}

// acquire hands back a context bounded by the lease so the critical section
// cannot outlive the Redis key.
func (l *RedisLocker) acquire(ctx context.Context, key string) (held, error) {
	redisKey := "lock:slot:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return held{}, fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return held{}, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return held{}, ctx.Err()
		case <-time.After(retryEvery):
		}
	}

	leaseCtx, cancel := context.WithTimeout(ctx, l.ttl)
	return held{
		ctx: leaseCtx,
		release: func() {
			cancel()
			// release even when the request context is already gone
			if err := l.release(context.WithoutCancel(ctx), redisKey, token); err != nil {
				l.log.Warn().Err(err).Str("key", redisKey).Msg("slot lock release failed")
			}
		},
	}, nil
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
