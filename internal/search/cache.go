// internal/search/cache.go
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
)

// CachingClient wraps a Client with a Redis-backed result cache. Cache
// failures are logged and treated as misses; the backend is the source of
// truth.
type CachingClient struct {
	inner  Client
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewCachingClient creates a caching wrapper around inner.
func NewCachingClient(inner Client, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachingClient {
	return &CachingClient{
		inner:  inner,
		redis:  rdb,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "search_cache"}),
	}
}

// Search checks the cache before delegating to the backend. Empty result
// sets are cached too so repeated no-result queries stay cheap.
func (c *CachingClient) Search(ctx context.Context, query, region string) ([]Offer, error) {
	key := cacheKey(query, region)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var offers []Offer
		if jsonErr := json.Unmarshal([]byte(cached), &offers); jsonErr == nil {
			metrics.SearchCacheHits.WithLabelValues("hit").Inc()
			c.logger.Debug("search cache hit", map[string]interface{}{"key": key})
			return offers, nil
		}
		// Corrupt entry, fall through to the backend.
		c.redis.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("search cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	metrics.SearchCacheHits.WithLabelValues("miss").Inc()

	offers, err := c.inner.Search(ctx, query, region)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(offers); jsonErr == nil {
		if setErr := c.redis.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.logger.Warn("search cache write failed", map[string]interface{}{
				"key":   key,
				"error": setErr.Error(),
			})
		}
	}

	return offers, nil
}

func cacheKey(query, region string) string {
	return fmt.Sprintf("search:%s:%s", region, query)
}
