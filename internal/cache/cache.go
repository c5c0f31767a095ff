// Package cache is a redis-backed lookaside cache for Spotify track
// searches and news answers. Redis being down never fails a caller: every
// miss path degrades to the upstream call.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// Key prefixes and default TTLs, matching the history of the deployment.
const (
	prefixTrack = "cache:track:"
	prefixNews  = "cache:news:"

	TrackTTL = 24 * time.Hour
	NewsTTL  = time.Hour
)

// Cache wraps an optional redis client. A nil client yields a no-op cache.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Available reports whether redis answers a ping.
func (c *Cache) Available(ctx context.Context) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	return c.rdb.Ping(ctx).Err() == nil
}

// NormalizeTrackQuery canonicalizes a title/artist pair so equivalent
// searches share one cache entry.
func NormalizeTrackQuery(title, artist string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return fmt.Sprintf("%s|%s", norm(title), norm(artist))
}

// GetTrack returns a cached track lookup, if any.
func (c *Cache) GetTrack(ctx context.Context, query string) (*model.Track, bool) {
	data, ok := c.get(ctx, prefixTrack+query)
	if !ok {
		return nil, false
	}
	var track model.Track
	if err := json.Unmarshal([]byte(data), &track); err != nil {
		return nil, false
	}
	return &track, true
}

// SetTrack stores a track lookup result.
func (c *Cache) SetTrack(ctx context.Context, query string, track *model.Track) {
	data, err := json.Marshal(track)
	if err != nil {
		return
	}
	c.set(ctx, prefixTrack+query, string(data), TrackTTL)
}

// GetNews returns a cached news answer for a query.
func (c *Cache) GetNews(ctx context.Context, query string) (string, bool) {
	return c.get(ctx, prefixNews+query)
}

// SetNews stores a news answer.
func (c *Cache) SetNews(ctx context.Context, query, news string) {
	c.set(ctx, prefixNews+query, news, NewsTTL)
}

func (c *Cache) get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	data, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Cache get failed for %s: %v", key, err)
		}
		return "", false
	}
	return data, true
}

func (c *Cache) set(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("Cache set failed for %s: %v", key, err)
	}
}
