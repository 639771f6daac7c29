package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// DeltaBaseKey identifies a materialized delta base by the pack it came
// from and its byte offset within that pack (spec.md §4.4: "bases are
// optionally cached, keyed by pack+offset").
type DeltaBaseKey struct {
	Pack   string
	Offset int64
}

// DeltaBaseCache retains inflated delta-chain bases across reads, bounded
// by DeltaBaseCacheLimit bytes. Same eviction strategy as ObjectLRU, kept
// as a separate type because its keys and values are shaped differently
// (pack+offset -> raw bytes, not hash -> EncodedObject).
type DeltaBaseCache struct {
	mu         sync.Mutex
	inner      *lru.Cache
	MaxSize    FileSize
	actualSize FileSize
}

// NewDeltaBaseCache returns a DeltaBaseCache bounded at maxSize bytes.
func NewDeltaBaseCache(maxSize FileSize) *DeltaBaseCache {
	c := &DeltaBaseCache{MaxSize: maxSize}
	c.inner = &lru.Cache{
		OnEvicted: func(key lru.Key, value interface{}) {
			c.actualSize -= FileSize(len(value.([]byte)))
		},
	}
	return c
}

// Put stores the inflated bytes of the base found at key.
func (c *DeltaBaseCache) Put(key DeltaBaseKey, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if FileSize(len(content)) > c.MaxSize {
		return
	}

	if prev, ok := c.inner.Get(lru.Key(key)); ok {
		c.actualSize -= FileSize(len(prev.([]byte)))
	}

	c.inner.Add(lru.Key(key), content)
	c.actualSize += FileSize(len(content))

	for c.actualSize > c.MaxSize && c.inner.Len() > 0 {
		c.inner.RemoveOldest()
	}
}

// Get returns the cached bytes for key, if present.
func (c *DeltaBaseCache) Get(key DeltaBaseKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.inner.Get(lru.Key(key))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Clear empties the cache.
func (c *DeltaBaseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inner.Clear()
	c.actualSize = 0
}
