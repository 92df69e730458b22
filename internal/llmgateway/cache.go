package llmgateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a Redis-backed response cache keyed by (operation, model,
// content-hash), coalescing identical completion requests across
// processes — spec's "coalescing cache" for the LM Gateway.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(addr string, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{rdb: redis.NewClient(&redis.Options{Addr: addr}), ttl: ttl}
}

func cacheKey(op, model string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(op))
	h.Write([]byte(model))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return "genworld:llm:" + hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		// Miss or Redis unavailable both degrade to a live call; the cache is
		// an optimization, never a hard dependency.
		return "", false
	}
	return v, true
}

func (c *Cache) Set(ctx context.Context, key, value string) {
	if c == nil {
		return
	}
	_ = c.rdb.Set(ctx, key, value, c.ttl).Err()
}
