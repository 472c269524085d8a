package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"

	"github.com/go-redis/redis/v8"
)

// ErrLockTimeout is returned when a resource stays locked for longer than Wait.
var ErrLockTimeout = errors.New("redis: timed out waiting for resource lock")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is an admission lock keyed by resource. It keeps most concurrent
// admissions for the same resource off the database; the database still has
// the final say.
type Redis struct {
	Client        *redis.Client
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
	Logger        *logger.Logger
}

func NewRedis(client *redis.Client, ttl, wait time.Duration, log *logger.Logger) *Redis {
	if log == nil {
		log = logger.Discard()
	}
	return &Redis{
		Client:        client,
		TTL:           ttl,
		Wait:          wait,
		RetryInterval: 25 * time.Millisecond,
		Logger:        log,
	}
}

func lockKey(resourceID string) string {
	return "booking_lock:" + resourceID
}

func (r *Redis) ttl() time.Duration {
	if r.TTL <= 0 {
		return 10 * time.Second
	}
	return r.TTL
}

// TryLock takes the lock once without waiting
func (r *Redis) TryLock(ctx context.Context, resourceID, owner string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, lockKey(resourceID), owner, r.ttl()).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", resourceID, err)
	}
	return ok, nil
}

// Acquire polls until the lock is free, Wait elapses or ctx is done
func (r *Redis) Acquire(ctx context.Context, resourceID, owner string) error {
	deadline := time.Now().Add(r.Wait)
	interval := r.RetryInterval
	if interval <= 0 {
		interval = 25 * time.Millisecond
	}

	for {
		ok, err := r.TryLock(ctx, resourceID, owner)
		if err != nil {
			return err
		}
		if ok {
			r.Logger.LogLock("ACQUIRED", resourceID, owner)
			return nil
		}
		if !time.Now().Before(deadline) {
			r.Logger.LogLock("TIMEOUT", resourceID, owner)
			return fmt.Errorf("%w: %s", ErrLockTimeout, resourceID)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Release frees the lock if owner still holds it. A lock that expired or was
// taken over is left alone.
func (r *Redis) Release(ctx context.Context, resourceID, owner string) error {
	n, err := releaseScript.Run(ctx, r.Client, []string{lockKey(resourceID)}, owner).Int()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", resourceID, err)
	}
	if n == 0 {
		r.Logger.Warn("LOCK", fmt.Sprintf("lock on %s no longer held by %s", resourceID, owner))
		return nil
	}
	r.Logger.LogLock("RELEASED", resourceID, owner)
	return nil
}

// IsLocked reports whether any owner currently holds the resource
func (r *Redis) IsLocked(ctx context.Context, resourceID string) (bool, error) {
	_, err := r.Client.Get(ctx, lockKey(resourceID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
