package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// CachedSource is a read-through Redis cache in front of a Source. Redis
// failures are logged and fall through to the underlying source. A nil
// client disables caching.
type CachedSource struct {
	src    Source
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedSource(src Source, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{src: src, rdb: rdb, ttl: ttl, logger: logger}
}

func businessKey(businessID string) string {
	return "catalog:business:" + businessID
}

func serviceKey(businessID, serviceID string) string {
	return "catalog:service:" + businessID + ":" + serviceID
}

func (c *CachedSource) Business(ctx context.Context, businessID string) (model.Business, error) {
	var b model.Business
	if c.get(ctx, businessKey(businessID), &b) {
		return b, nil
	}
	b, err := c.src.Business(ctx, businessID)
	if err != nil {
		return model.Business{}, err
	}
	c.set(ctx, businessKey(businessID), b)
	return b, nil
}

func (c *CachedSource) Snapshot(ctx context.Context, businessID, serviceID string) (Snapshot, error) {
	b, err := c.Business(ctx, businessID)
	if err != nil {
		return Snapshot{}, err
	}
	var svc model.Service
	if c.get(ctx, serviceKey(businessID, serviceID), &svc) {
		return Snapshot{Business: b, Service: svc}, nil
	}
	snap, err := c.src.Snapshot(ctx, businessID, serviceID)
	if err != nil {
		return Snapshot{}, err
	}
	c.set(ctx, serviceKey(businessID, serviceID), snap.Service)
	return Snapshot{Business: b, Service: snap.Service}, nil
}

// Fresh reads straight from the source and refreshes the cache. Booking
// submission uses it so the authoritative check never sees a stale snapshot.
func (c *CachedSource) Fresh(ctx context.Context, businessID, serviceID string) (Snapshot, error) {
	snap, err := c.src.Snapshot(ctx, businessID, serviceID)
	if err != nil {
		return Snapshot{}, err
	}
	c.set(ctx, businessKey(businessID), snap.Business)
	c.set(ctx, serviceKey(businessID, serviceID), snap.Service)
	return snap, nil
}

// Invalidate drops the cached business and all of its cached services.
func (c *CachedSource) Invalidate(ctx context.Context, businessID string) error {
	if c.rdb == nil {
		return nil
	}
	keys := []string{businessKey(businessID)}
	iter := c.rdb.Scan(ctx, 0, serviceKey(businessID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog keys: %w", err)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete catalog keys: %w", err)
	}
	return nil
}

func (c *CachedSource) get(ctx context.Context, key string, dst any) bool {
	if c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache read failed", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("catalog cache entry corrupt", "key", key, "err", err)
		return false
	}
	return true
}

func (c *CachedSource) set(ctx context.Context, key string, v any) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("catalog cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", "key", key, "err", err)
	}
}
