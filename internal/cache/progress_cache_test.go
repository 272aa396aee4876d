package cache_test

import (
	"context"
	"testing"

	"teamsync/internal/cache"
	"teamsync/internal/progress"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*cache.ProgressCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewProgressCache(client), mr
}

func TestProgressCache_SetGet(t *testing.T) {
	c, _ := setupCache(t)
	projectID := uuid.New()

	summary := progress.Summary{CompletedCount: 2, TotalCount: 3, PercentComplete: 200.0 / 3.0}
	c.Set(context.Background(), projectID, summary)

	got, ok := c.Get(context.Background(), projectID)
	require.True(t, ok)
	assert.Equal(t, summary, got)
}

func TestProgressCache_MissForUnknownProject(t *testing.T) {
	c, _ := setupCache(t)

	_, ok := c.Get(context.Background(), uuid.New())
	assert.False(t, ok)
}

func TestProgressCache_Invalidate(t *testing.T) {
	c, _ := setupCache(t)
	projectID := uuid.New()

	c.Set(context.Background(), projectID, progress.Summary{CompletedCount: 1, TotalCount: 1, PercentComplete: 100})
	c.Invalidate(context.Background(), projectID)

	_, ok := c.Get(context.Background(), projectID)
	assert.False(t, ok)
}

func TestProgressCache_UnreachableRedisIsAMiss(t *testing.T) {
	c, mr := setupCache(t)
	projectID := uuid.New()

	c.Set(context.Background(), projectID, progress.Summary{TotalCount: 1})
	mr.Close()

	_, ok := c.Get(context.Background(), projectID)
	assert.False(t, ok)
}

func TestProgressCache_NilCacheIsDisabled(t *testing.T) {
	var c *cache.ProgressCache
	projectID := uuid.New()

	// All operations are safe no-ops without a client.
	c.Set(context.Background(), projectID, progress.Summary{TotalCount: 1})
	c.Invalidate(context.Background(), projectID)

	_, ok := c.Get(context.Background(), projectID)
	assert.False(t, ok)
}
