package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locker holds short-lived exclusive locks in Redis. A lock is released only
// by the owner that took it.
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{Client: client, TTL: ttl}
}

// unlockScript deletes the key only while it still holds the owner's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func lockKey(name string) string {
	return "lock:" + name
}

// Lock returns false when another owner holds name.
func (l *Locker) Lock(ctx context.Context, name, owner string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, lockKey(name), owner, l.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", name, err)
	}
	return ok, nil
}

func (l *Locker) Unlock(ctx context.Context, name, owner string) error {
	if err := unlockScript.Run(ctx, l.Client, []string{lockKey(name)}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("unlock %s: %w", name, err)
	}
	return nil
}

// NopLocker always grants the lock.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string, string) (bool, error) { return true, nil }

func (NopLocker) Unlock(context.Context, string, string) error { return nil }
