package registry

import (
	"context"
	"fmt"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/logger"

	"github.com/go-redis/redis/v8"
)

// noZone marks a cached lookup that found the entity but no zone.
const noZone = "-"

// Cache is a read-through Redis cache in front of a booking.Registry.
// Lookup errors are never cached. A Redis failure falls back to Next.
type Cache struct {
	Next   booking.Registry
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewCache(next booking.Registry, client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Discard()
	}
	return &Cache{Next: next, Client: client, TTL: ttl, Logger: log}
}

func resourceKey(tenantID, resourceID string) string {
	return fmt.Sprintf("registry:tz:resource:%s:%s", tenantID, resourceID)
}

func tenantKey(tenantID string) string {
	return "registry:tz:tenant:" + tenantID
}

func (c *Cache) GetResourceTimezone(ctx context.Context, tenantID, resourceID string) (string, error) {
	return c.lookup(ctx, resourceKey(tenantID, resourceID), func() (string, error) {
		return c.Next.GetResourceTimezone(ctx, tenantID, resourceID)
	})
}

func (c *Cache) GetTenantTimezone(ctx context.Context, tenantID string) (string, error) {
	return c.lookup(ctx, tenantKey(tenantID), func() (string, error) {
		return c.Next.GetTenantTimezone(ctx, tenantID)
	})
}

// InvalidateResource drops a cached resource zone
func (c *Cache) InvalidateResource(ctx context.Context, tenantID, resourceID string) error {
	c.Logger.LogRegistry("INVALIDATE", resourceKey(tenantID, resourceID), "resource timezone changed")
	return c.Client.Del(ctx, resourceKey(tenantID, resourceID)).Err()
}

// InvalidateTenant drops a cached tenant zone
func (c *Cache) InvalidateTenant(ctx context.Context, tenantID string) error {
	c.Logger.LogRegistry("INVALIDATE", tenantKey(tenantID), "tenant timezone changed")
	return c.Client.Del(ctx, tenantKey(tenantID)).Err()
}

func (c *Cache) lookup(ctx context.Context, key string, load func() (string, error)) (string, error) {
	val, err := c.Client.Get(ctx, key).Result()
	switch {
	case err == nil:
		c.Logger.LogRegistry("HIT", key, val)
		if val == noZone {
			return "", nil
		}
		return val, nil
	case err != redis.Nil:
		c.Logger.Warn("REGISTRY", fmt.Sprintf("cache read %s failed, falling back: %v", key, err))
	}

	tz, err := load()
	if err != nil {
		return "", err
	}

	stored := tz
	if stored == "" {
		stored = noZone
	}
	if err := c.Client.Set(ctx, key, stored, c.TTL).Err(); err != nil {
		c.Logger.Warn("REGISTRY", fmt.Sprintf("cache write %s failed: %v", key, err))
	} else {
		c.Logger.LogRegistry("MISS", key, stored)
	}
	return tz, nil
}
