package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"trackmeta/internal/metadata"
	"trackmeta/pkg/soundcloud"
)

// bloomRebuildFactor bounds how many inserts the bloom filter absorbs, relative
// to capacity, before it is rebuilt from the live keys.
const bloomRebuildFactor = 4

// MetadataCache keeps recent successful resolutions. A bloom filter answers
// most misses without touching the LRU.
type MetadataCache struct {
	bloom                  *bloom.BloomFilter
	lru                    *expirable.LRU[string, *metadata.TrackMetadata]
	mutex                  sync.RWMutex
	capacity               int
	bloomFalsePositiveRate float64
	inserts                int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

// NewMetadataCache creates a cache holding up to capacity records for ttl.
// A zero ttl keeps records until they are evicted.
func NewMetadataCache(capacity int, ttl time.Duration, bloomFalsePositiveRate float64) *MetadataCache {
	if capacity <= 0 || capacity > int(^uint(0)>>1) {
		panic("capacity value out of range for uint conversion")
	}

	return &MetadataCache{
		bloom:                  bloom.NewWithEstimates(uint(capacity), bloomFalsePositiveRate),
		lru:                    expirable.NewLRU[string, *metadata.TrackMetadata](capacity, nil, ttl),
		capacity:               capacity,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
	}
}

// Get returns a copy of the cached record for key.
func (c *MetadataCache) Get(key string) (*metadata.TrackMetadata, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if !c.bloom.TestString(key) {
		c.misses.Add(1)
		return nil, false
	}

	md, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return md.Clone(), true
}

// Add stores a copy of md under key.
func (c *MetadataCache) Add(key string, md *metadata.TrackMetadata) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.lru.Add(key, md.Clone())
	c.bloom.AddString(key)
	c.inserts++

	if c.inserts > bloomRebuildFactor*c.capacity {
		c.rebuildBloom()
	}
}

// Remove drops key from the cache.
func (c *MetadataCache) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	// The bloom filter keeps the key; Get falls through to the LRU.
	c.lru.Remove(key)
}

// Purge empties the cache.
func (c *MetadataCache) Purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.lru.Purge()
	c.bloom = bloom.NewWithEstimates(uint(c.capacity), c.bloomFalsePositiveRate)
	c.inserts = 0
}

// Stats returns current counters.
func (c *MetadataCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return CacheStats{
		Size:   c.lru.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

func (c *MetadataCache) rebuildBloom() {
	c.bloom = bloom.NewWithEstimates(uint(c.capacity), c.bloomFalsePositiveRate)
	keys := c.lru.Keys()
	for _, key := range keys {
		c.bloom.AddString(key)
	}
	c.inserts = len(keys)
}

// Resolver is the resolution call CachingResolver decorates.
type Resolver interface {
	Resolve(ctx context.Context, ref soundcloud.TrackReference, credential string) (*metadata.TrackMetadata, error)
}

// CachingResolver serves repeated references from a MetadataCache. Failures
// are never cached.
type CachingResolver struct {
	next   Resolver
	cache  *MetadataCache
	prefix string
}

// NewCachingResolver wraps next with cache. When next reports its requested
// fields, they become part of the cache key.
func NewCachingResolver(next Resolver, cache *MetadataCache) *CachingResolver {
	prefix := ""
	if f, ok := next.(interface{ Fields() metadata.Fields }); ok {
		prefix = f.Fields().String()
	}
	return &CachingResolver{next: next, cache: cache, prefix: prefix}
}

// Resolve returns a cached record or delegates and caches the result.
func (r *CachingResolver) Resolve(ctx context.Context, ref soundcloud.TrackReference,
	credential string) (*metadata.TrackMetadata, error) {
	key := r.prefix + "\x00" + credential + "\x00" + ref.String()
	if md, ok := r.cache.Get(key); ok {
		return md, nil
	}

	md, err := r.next.Resolve(ctx, ref, credential)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, md)
	return md, nil
}
