package aging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const reportCacheKey = "aging:report"

// ReportCache keeps the latest aging report in Redis so dashboards do not
// hit the snapshot table on every load.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache wraps the Redis client. A nil client disables caching.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Get returns the cached report, or (nil, nil) on a miss. Decode failures
// count as misses; the stale value is dropped.
func (c *ReportCache) Get(ctx context.Context) (*Report, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, reportCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		c.client.Del(ctx, reportCacheKey)
		return nil, nil
	}
	return &report, nil
}

// Set stores the report for the configured TTL.
func (c *ReportCache) Set(ctx context.Context, report *Report) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportCacheKey, raw, c.ttl).Err()
}

// Invalidate drops the cached report. Called after every refresh.
func (c *ReportCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, reportCacheKey).Err()
}
