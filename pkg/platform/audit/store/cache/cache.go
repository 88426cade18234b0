// Package cache fronts an audit store with a Redis cache for aggregate counts.
//
// Cached counts are keyed by a generation number that every successful append
// bumps, so a write makes all earlier count entries unreachable at once. Any
// Redis failure falls through to the wrapped store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	audit "voyage/pkg/platform/audit"
)

// DefaultTTL bounds how long a count entry lives even without writes.
const DefaultTTL = time.Minute

const (
	keyPrefix     = "voyage:audit:counts:"
	generationKey = keyPrefix + "generation"
)

// CountCache wraps an audit.Store. Every method other than AppendBatch and
// Count passes straight through.
type CountCache struct {
	audit.Store
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps store. A non-positive ttl uses DefaultTTL.
func New(store audit.Store, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CountCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CountCache{Store: store, rdb: rdb, ttl: ttl, logger: logger}
}

// AppendBatch stores the batch, then invalidates every cached count.
func (c *CountCache) AppendBatch(ctx context.Context, batch []audit.PendingEntry, meta audit.NetworkMetadata) ([]audit.LogEntry, error) {
	stored, err := c.Store.AppendBatch(ctx, batch, meta)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to invalidate audit count cache", "error", err)
	}
	return stored, nil
}

// Count serves f from the cache when possible.
func (c *CountCache) Count(ctx context.Context, f audit.Filters) (audit.Counts, error) {
	key, err := c.key(ctx, f)
	if err != nil {
		c.logger.WarnContext(ctx, "audit count cache unavailable", "error", err)
		return c.Store.Count(ctx, f)
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var counts audit.Counts
		if jsonErr := json.Unmarshal(raw, &counts); jsonErr == nil {
			return normalise(counts), nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "audit count cache read failed", "error", err)
	}

	counts, err := c.Store.Count(ctx, f)
	if err != nil {
		return audit.Counts{}, err
	}
	if raw, err := json.Marshal(counts); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "audit count cache write failed", "error", err)
		}
	}
	return counts, nil
}

func (c *CountCache) key(ctx context.Context, f audit.Filters) (string, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s%d:%s", keyPrefix, gen, filterKey(f)), nil
}

// filterKey renders f deterministically. Field order is fixed.
func filterKey(f audit.Filters) string {
	return fmt.Sprintf("u=%s|a=%s|rt=%s|rid=%s|s=%s|e=%s",
		f.UserID, f.Action, f.ResourceType, f.ResourceID,
		formatTime(f.StartDate), formatTime(f.EndDate))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func normalise(c audit.Counts) audit.Counts {
	if c.ByAction == nil {
		c.ByAction = make(map[audit.Action]int)
	}
	if c.ByResourceType == nil {
		c.ByResourceType = make(map[audit.ResourceType]int)
	}
	return c
}
