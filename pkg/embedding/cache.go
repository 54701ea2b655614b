package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrCacheMiss is returned by Cache.Get when no embedding is stored.
var ErrCacheMiss = errors.New("embedding cache miss")

const (
	defaultCacheEntries = 4096
	defaultCacheTTL     = time.Hour
)

// LRUCache is an in-process Cache bounded by entry count, with entries
// expiring after a TTL.
type LRUCache struct {
	cache *lru.LRU[string, []float32]
}

// NewLRUCache creates a cache holding up to maxEntries embeddings for ttl.
// Zero values select 4096 entries and one hour.
func NewLRUCache(maxEntries int, ttl time.Duration) *LRUCache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &LRUCache{cache: lru.NewLRU[string, []float32](maxEntries, nil, ttl)}
}

// Get retrieves a cached embedding by content hash.
func (c *LRUCache) Get(_ context.Context, contentHash string) ([]float32, error) {
	v, ok := c.cache.Get(contentHash)
	if !ok {
		return nil, ErrCacheMiss
	}
	return slices.Clone(v), nil
}

// Put stores a copy of embedding under contentHash.
func (c *LRUCache) Put(_ context.Context, contentHash string, embedding []float32) error {
	c.cache.Add(contentHash, slices.Clone(embedding))
	return nil
}

// Len returns the number of cached embeddings.
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

// ContentHash generates a SHA-256 hash of text content for use as a cache key.
func ContentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
