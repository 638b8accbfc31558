package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/surebot/surebot/internal/domain"
)

// unlockTimeout bounds the release round trip when the holder's own context
// is already gone.
const unlockTimeout = 5 * time.Second

// unlockLua deletes a lock key only if its value matches the caller's unique
// token, so one holder cannot release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager using Redis SETNX with a TTL and
// a Lua-based conditional unlock. Markets are locked during allocation so
// two runner instances never size stakes for the same market at once. The
// TTL is the safety net when a holder dies without releasing.
type LockManager struct {
	client *Client
	unlock *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		client: c,
		unlock: redis.NewScript(unlockLua),
	}
}

// Acquire attempts to obtain a distributed lock for the given key with the
// given TTL. On success it returns a release function that is safe to call
// multiple times.
//
// It returns domain.ErrLockHeld if the lock is already held by another party.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lm.client.key("lock", key)

	ok, err := lm.client.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// The caller's context may be cancelled by the time stakes are
		// sized; release on a fresh one so the lock never outlives its TTL
		// needlessly.
		unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()

		_ = lm.unlock.Run(unlockCtx, lm.client.rdb, []string{lk}, token).Err()
	}

	return release, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
