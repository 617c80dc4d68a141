package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrHeld means another holder owns the key.
var ErrHeld = errors.New("lock: already held")

// releaseScript deletes the key only while it still carries our token, so a
// holder whose TTL lapsed cannot free a lock somebody else took since.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker guards submissions across API replicas sharing one Redis.
type Locker struct {
	R *redis.Client
}

// SubmitKey scopes a lock to one kind of submission for one order.
func SubmitKey(sessionID, orderKey, kind string) string {
	return "orderdesk:lock:" + kind + ":" + sessionID + ":" + orderKey
}

// TryWithLock runs fn while holding key, or returns ErrHeld at once when
// the key is taken. The lock expires after ttl even if the process dies.
func (l Locker) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer func() {
		rctx := context.WithoutCancel(ctx)
		if err := releaseScript.Run(rctx, l.R, []string{key}, token).Err(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("lock_release_failed")
		}
	}()
	return fn(ctx)
}
