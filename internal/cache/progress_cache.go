// Package cache keeps per-project progress summaries in Redis so the
// dashboard does not recount tasks on every read. A nil client disables
// caching entirely; callers fall through to the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"teamsync/internal/progress"
)

const progressTTL = 5 * time.Minute

type ProgressCache struct {
	client *redis.Client
}

func NewProgressCache(client *redis.Client) *ProgressCache {
	return &ProgressCache{client: client}
}

func progressKey(projectID uuid.UUID) string {
	return fmt.Sprintf("progress:%s", projectID)
}

// Get returns the cached summary and whether it was present. Cache
// errors are reported as misses; the database remains the source of
// truth.
func (c *ProgressCache) Get(ctx context.Context, projectID uuid.UUID) (progress.Summary, bool) {
	if c == nil || c.client == nil {
		return progress.Summary{}, false
	}

	data, err := c.client.Get(ctx, progressKey(projectID)).Bytes()
	if err != nil {
		return progress.Summary{}, false
	}

	var summary progress.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return progress.Summary{}, false
	}
	return summary, true
}

func (c *ProgressCache) Set(ctx context.Context, projectID uuid.UUID, summary progress.Summary) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	c.client.Set(ctx, progressKey(projectID), data, progressTTL)
}

// Invalidate drops the cached summary; called after every task mutation.
func (c *ProgressCache) Invalidate(ctx context.Context, projectID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, progressKey(projectID))
}
