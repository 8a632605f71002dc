// Package embedcache implements C15: a Redis-backed embedding cache keyed
// by the exact query string, sparing a round trip to the model gateway for
// repeated questions (spec §4.11).
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

const (
	ttl       = 24 * time.Hour
	keyPrefix = "embedcache:"
)

// Cache is the narrow surface the retrieval function needs. A miss or a
// Redis outage is never fatal: Get returns (nil, false) either way and the
// caller falls back to embedding via the model gateway (spec §4.11).
type Cache interface {
	Get(ctx context.Context, query string) ([]float32, bool)
	Set(ctx context.Context, query string, embedding []float32)
}

type cache struct {
	rdb *redis.Client
	log *logger.Logger
}

func New(addr string, log *logger.Logger) Cache {
	if addr == "" {
		return noopCache{}
	}
	return &cache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		log: log.With("service", "EmbedCache"),
	}
}

func (c *cache) Get(ctx context.Context, query string) ([]float32, bool) {
	raw, err := c.rdb.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("embedcache: get failed, falling back to model gateway", "error", err.Error())
		}
		return nil, false
	}
	var embedding []float32
	if err := json.Unmarshal(raw, &embedding); err != nil {
		c.log.Warn("embedcache: corrupt cache entry, ignoring", "error", err.Error())
		return nil, false
	}
	return embedding, true
}

func (c *cache) Set(ctx context.Context, query string, embedding []float32) {
	raw, err := json.Marshal(embedding)
	if err != nil {
		c.log.Warn("embedcache: marshal failed, not caching", "error", err.Error())
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(query), raw, ttl).Err(); err != nil {
		c.log.Warn("embedcache: set failed, continuing without cache", "error", err.Error())
	}
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// noopCache is used when no Redis address is configured, so the retrieval
// function's caching layer degrades to always-miss rather than branching on
// nil checks at every call site.
type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]float32, bool) { return nil, false }
func (noopCache) Set(context.Context, string, []float32)        {}
