package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/drywaters/recapd/internal/model"
	"github.com/drywaters/recapd/internal/storage"
)

const summaryKeyPrefix = "summary_"

// SummaryCache maps a video ID to its most recent summary with a fixed
// TTL. All operations are best-effort: a storage failure reads as a
// miss and a failed write is logged and dropped, so a broken store
// degrades to recomputation instead of failing requests.
type SummaryCache struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSummaryCache creates a summary cache with the given TTL
func NewSummaryCache(store storage.Store, ttl time.Duration) *SummaryCache {
	return &SummaryCache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cached summary for a video, or nil on miss.
// An entry at or past its expiry is treated as a miss and deleted.
func (c *SummaryCache) Get(ctx context.Context, videoID string) *model.Summary {
	key := summaryKeyPrefix + videoID

	value, expiresAt, err := c.store.Get(ctx, storage.NamespaceLocal, key)
	if err != nil {
		slog.Warn("summary cache read failed", "video_id", videoID, "error", err)
		return nil
	}
	if value == nil {
		return nil
	}

	if expiresAt != nil && !c.now().Before(*expiresAt) {
		if err := c.store.Delete(ctx, storage.NamespaceLocal, key); err != nil {
			slog.Warn("failed to delete expired summary", "video_id", videoID, "error", err)
		}
		return nil
	}

	var summary model.Summary
	if err := json.Unmarshal(value, &summary); err != nil {
		slog.Warn("summary cache entry malformed", "video_id", videoID, "error", err)
		return nil
	}

	return &summary
}

// Set stores a summary with a fresh expiry, unconditionally replacing
// any prior entry for the video
func (c *SummaryCache) Set(ctx context.Context, videoID string, summary *model.Summary) {
	value, err := json.Marshal(summary)
	if err != nil {
		slog.Warn("failed to marshal summary", "video_id", videoID, "error", err)
		return
	}

	expiresAt := c.now().Add(c.ttl)
	if err := c.store.Set(ctx, storage.NamespaceLocal, summaryKeyPrefix+videoID, value, &expiresAt); err != nil {
		slog.Warn("summary cache write failed", "video_id", videoID, "error", err)
	}
}

// Sweep removes every expired entry across the whole store, not just
// the summary namespace
func (c *SummaryCache) Sweep(ctx context.Context) {
	removed, err := c.store.DeleteExpired(ctx, c.now())
	if err != nil {
		slog.Warn("cache sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("swept expired cache entries", "removed", removed)
	}
}
