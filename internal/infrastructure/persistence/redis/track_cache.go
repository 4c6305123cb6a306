package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK CACHE
// ══════════════════════════════════════════════════════════════════════════════

// TrackCache implements music.TrackCache on top of Cache.
type TrackCache struct {
	cache  *Cache
	logger *logger.Logger
}

var _ music.TrackCache = (*TrackCache)(nil)

// NewTrackCache creates a TrackCache.
func NewTrackCache(cache *Cache, log *logger.Logger) *TrackCache {
	if log == nil {
		log = logger.Nop()
	}
	return &TrackCache{
		cache:  cache,
		logger: log.With(logger.Component("track_cache")),
	}
}

// PutTracks stores tracks by ID. A zero ttl never expires.
func (c *TrackCache) PutTracks(ctx context.Context, tracks []music.Track, ttl time.Duration) error {
	if len(tracks) == 0 {
		return nil
	}

	pairs := make(map[string]any, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		pairs[TrackKey(t.ID)] = t
	}

	if err := c.cache.MSet(ctx, pairs, ttl); err != nil {
		return fmt.Errorf("failed to cache tracks: %w", err)
	}
	return nil
}

// GetTracks returns the cached tracks. Entries that fail to decode count as
// misses.
func (c *TrackCache) GetTracks(ctx context.Context, ids []string) (map[string]music.Track, error) {
	out := make(map[string]music.Track, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = TrackKey(id)
	}

	raw, err := c.cache.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached tracks: %w", err)
	}

	for i, id := range ids {
		data, ok := raw[keys[i]]
		if !ok {
			continue
		}
		var t music.Track
		if err := json.Unmarshal(data, &t); err != nil {
			c.logger.Warn("dropping undecodable cached track",
				logger.TrackID(id),
				logger.Err(err),
			)
			continue
		}
		out[id] = t
	}

	return out, nil
}

// DropTracks evicts tracks by ID.
func (c *TrackCache) DropTracks(ctx context.Context, ids []string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			keys = append(keys, TrackKey(id))
		}
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to evict tracks: %w", err)
	}
	return nil
}
