package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailtrack/internal/pkg/logger"
)

// LinkCache is a redis-backed read-through cache for token→link rows on
// the click path. Cache failures degrade to database lookups; they are
// never surfaced to the caller.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache creates a link cache with the given entry TTL.
func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LinkCache{client: client, ttl: ttl}
}

func cacheKey(token string) string {
	return "mailtrack:link:" + token
}

// Get returns the cached link for a token, or nil on miss or cache error.
func (c *LinkCache) Get(ctx context.Context, token string) *TrackingLink {
	data, err := c.client.Get(ctx, cacheKey(token)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		logger.Debug("link cache get failed", "error", err)
		return nil
	}

	var link TrackingLink
	if err := json.Unmarshal(data, &link); err != nil {
		logger.Warn("link cache entry corrupt, dropping", "token", token)
		c.client.Del(ctx, cacheKey(token))
		return nil
	}
	return &link
}

// Put stores a resolved link. Best effort; errors are logged and ignored.
func (c *LinkCache) Put(ctx context.Context, link *TrackingLink) {
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(link.Token), data, c.ttl).Err(); err != nil {
		logger.Debug("link cache put failed", "error", err)
	}
}
