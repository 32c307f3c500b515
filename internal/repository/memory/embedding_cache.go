package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// EmbeddingCache keeps query embeddings so repeated prompts skip the provider round trip.
type EmbeddingCache struct {
	cache *cache.Cache
}

func NewEmbeddingCache(ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	if x, found := c.cache.Get(cacheKey(text)); found {
		return x.([]float32), true
	}
	return nil, false
}

func (c *EmbeddingCache) Set(text string, vector []float32) {
	c.cache.Set(cacheKey(text), vector, cache.DefaultExpiration)
}

func (c *EmbeddingCache) Len() int {
	return c.cache.ItemCount()
}
