package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

// releaseScript deletes KEYS[1] only while it still holds the caller's token,
// so an expired holder cannot release a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

const releaseTimeout = 5 * time.Second

// LockManager guards deployments of the same preset to the same chain.
type LockManager struct {
	rdb    *redis.Client
	prefix string
}

// NewLockManager creates a LockManager whose keys are namespaced by prefix.
// An empty prefix uses "ticketdeploy:lock:".
func NewLockManager(c *Client, prefix string) *LockManager {
	if prefix == "" {
		prefix = "ticketdeploy:lock:"
	}
	return &LockManager{rdb: c.Underlying(), prefix: prefix}
}

// Key returns the Redis key used for a logical lock name.
func (lm *LockManager) Key(name string) string {
	return lm.prefix + name
}

// Acquire takes the lock for name with SET NX and the given ttl. The returned
// release func is idempotent and uses its own context so it still runs after
// the caller's context is cancelled. A lock held by anyone else yields
// domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := lm.Key(name)
	token := uuid.NewString()

	ok, err := lm.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLockHeld, name)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = releaseScript.Run(rctx, lm.rdb, []string{key}, token).Err()
		})
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
