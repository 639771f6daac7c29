package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/yamaritta/ngit/plumbing"
)

// Object is the cache interface the object database consults before
// reading from disk, matching the teacher's plumbing/cache.Object shape
// (Add/Get/Clear), generalized here to a byte-bounded LRU.
type Object interface {
	Put(o plumbing.EncodedObject)
	Get(h plumbing.Hash) (plumbing.EncodedObject, bool)
	Clear()
}

// ObjectLRU is a byte-size-bounded, least-recently-used EncodedObject
// cache, implemented over github.com/golang/groupcache/lru (the teacher's
// own dependency for this concern, confirmed in
// plumbing/transport/http/common.go). groupcache's Cache self-evicts by
// entry count, not by byte size, so Put evicts the oldest entries itself
// whenever the running byte total exceeds MaxSize — mirroring the teacher's
// own plumbing/cache ObjectLRU, which tracks actualSize by hand over a
// container/list rather than groupcache.
type ObjectLRU struct {
	mu         sync.Mutex
	inner      *lru.Cache
	MaxSize    FileSize
	actualSize FileSize
}

// NewObjectLRU returns an ObjectLRU bounded at maxSize bytes.
func NewObjectLRU(maxSize FileSize) *ObjectLRU {
	c := &ObjectLRU{MaxSize: maxSize}
	c.inner = &lru.Cache{
		OnEvicted: func(key lru.Key, value interface{}) {
			c.actualSize -= FileSize(value.(plumbing.EncodedObject).Size())
		},
	}
	return c
}

// NewObjectLRUDefault returns an ObjectLRU bounded at the default object
// cache size.
func NewObjectLRUDefault() *ObjectLRU {
	return NewObjectLRU(96 * MiByte)
}

// Put inserts o, evicting the least-recently-used entries until the cache
// fits within MaxSize. An object larger than MaxSize is simply not
// retained. Re-putting an existing hash with a different size updates the
// accounted size (matches the teacher's TestPutSameObjectWithDifferentSize).
func (c *ObjectLRU) Put(o plumbing.EncodedObject) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if FileSize(o.Size()) > c.MaxSize {
		return
	}

	if prev, ok := c.inner.Get(lru.Key(o.Hash())); ok {
		c.actualSize -= FileSize(prev.(plumbing.EncodedObject).Size())
	}

	c.inner.Add(lru.Key(o.Hash()), o)
	c.actualSize += FileSize(o.Size())

	for c.actualSize > c.MaxSize && c.inner.Len() > 0 {
		c.inner.RemoveOldest()
	}
}

// Get returns the cached object for h, if present.
func (c *ObjectLRU) Get(h plumbing.Hash) (plumbing.EncodedObject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.inner.Get(lru.Key(h))
	if !ok {
		return nil, false
	}
	return v.(plumbing.EncodedObject), true
}

// Clear empties the cache.
func (c *ObjectLRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inner.Clear()
	c.actualSize = 0
}
