package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/simorq_booking/pkg/util/codes"
)

var ErrLockNotAcquired = errors.New("redis lock not acquired")

// unlockScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived distributed mutexes keyed by string.
type Locker struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewLocker(rdb *goredis.Client, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

// Lock blocks until the key is acquired, the context ends or the TTL elapses
// without success. The returned func releases the lock.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.prefix + key
	token, err := codes.GenerateSecureToken(codes.TokenByteLength)
	if err != nil {
		return nil, fmt.Errorf("lock token: %w", err)
	}

	deadline := time.Now().Add(l.ttl)
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", full, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, full)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	unlock := func() {
		// release even if the caller's context was cancelled meanwhile
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = unlockScript.Run(releaseCtx, l.rdb, []string{full}, token).Err()
	}
	return unlock, nil
}
