package aging

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewReportCache(client, ttl), mr
}

func sampleReport() *Report {
	return &Report{
		Rows: []Row{{
			AgentID:          1,
			AgentName:        "Amina",
			TotalOutstanding: dec("500.00"),
			Bucket8Plus:      dec("500.00"),
			OldestCollection: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		}},
		GeneratedAt: time.Date(2026, 7, 10, 2, 0, 0, 0, time.UTC),
	}
}

func TestReportCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, cache.Set(ctx, sampleReport()))

	got, err = cache.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Rows, 1)
	require.Equal(t, "Amina", got.Rows[0].AgentName)
	require.True(t, got.Rows[0].TotalOutstanding.Equal(dec("500.00")))
}

func TestReportCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleReport()))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReportCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleReport()))
	require.NoError(t, cache.Invalidate(ctx))

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReportCacheDropsCorruptPayload(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set(reportCacheKey, "{not json"))

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
	require.False(t, mr.Exists(reportCacheKey))
}

func TestReportCacheNilClient(t *testing.T) {
	var cache *ReportCache
	ctx := context.Background()

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, cache.Set(ctx, sampleReport()))
	require.NoError(t, cache.Invalidate(ctx))
}
