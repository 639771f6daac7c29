package cache

import (
	"container/list"
	"io"
	"sync"
	"sync/atomic"
)

// WindowSource is a random-access byte source a WindowCache can carve
// windows out of: typically an open pack file.
type WindowSource interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// Window is a fixed-size view into a WindowSource starting at Offset, which
// may be less than the offset requested by GetWindow (spec.md §4.2: "a
// window covering offset with its true starting offset <= requested").
// Windows are reference-counted while a reader holds them; callers must
// call Release when done.
type Window struct {
	Offset int64
	Data   []byte
	pins   int32
}

// Pin increments the window's reader count.
func (w *Window) Pin() { atomic.AddInt32(&w.pins, 1) }

// Release decrements the window's reader count.
func (w *Window) Release() { atomic.AddInt32(&w.pins, -1) }

func (w *Window) pinned() bool { return atomic.LoadInt32(&w.pins) > 0 }

// ReadAt copies bytes from the window into p, starting at the file-relative
// offset off (which must lie within [w.Offset, w.Offset+len(w.Data))).
// It returns the number of bytes copied, which may be less than len(p) if
// the window doesn't extend that far — callers should fetch the next
// window to continue.
func (w *Window) ReadAt(p []byte, off int64) int {
	i := off - w.Offset
	if i < 0 || i >= int64(len(w.Data)) {
		return 0
	}
	return copy(p, w.Data[i:])
}

type windowKey struct {
	file   string
	offset int64
}

type windowEntry struct {
	key windowKey
	win *Window
}

// WindowCache is the process-wide, process-shared cache of byte windows
// described in spec.md §4.2: an LRU keyed by (file, window-aligned offset),
// with pinned windows exempt from eviction. It is implemented over
// container/list directly (rather than the groupcache-based LRUs in this
// package) precisely because eviction here must skip pinned entries, which
// groupcache/lru's simple strict-LRU eviction cannot express — see
// DESIGN.md.
type WindowCache struct {
	mu         sync.Mutex
	windowSize int64
	limit      int64
	size       int64
	ll         *list.List
	items      map[windowKey]*list.Element
}

// NewWindowCache returns a WindowCache with the given window stride and
// total byte limit.
func NewWindowCache(windowSize, limit FileSize) *WindowCache {
	return &WindowCache{
		windowSize: int64(windowSize),
		limit:      int64(limit),
		ll:         list.New(),
		items:      make(map[windowKey]*list.Element),
	}
}

// GetWindow returns a pinned Window covering offset within the named file,
// reading through src on a cache miss. The caller must call Release on the
// returned Window once done with it.
func (c *WindowCache) GetWindow(file string, src WindowSource, offset int64) (*Window, error) {
	aligned := offset - offset%c.windowSize
	key := windowKey{file: file, offset: aligned}

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		w := el.Value.(*windowEntry).win
		w.Pin()
		c.mu.Unlock()
		return w, nil
	}
	c.mu.Unlock()

	// Read outside the lock: acquire-check-release, then I/O, then
	// reinsert (spec.md §9), so a slow read on one file never blocks
	// other readers' cache lookups.
	size := c.windowSize
	if remaining := src.Size() - aligned; remaining < size {
		size = remaining
	}
	if size < 0 {
		size = 0
	}
	buf := make([]byte, size)
	n, err := src.ReadAt(buf, aligned)
	if err != nil && err != io.EOF {
		return nil, err
	}
	buf = buf[:n]

	w := &Window{Offset: aligned, Data: buf}
	w.Pin()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have populated this window while we read.
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		existing := el.Value.(*windowEntry).win
		existing.Pin()
		w.Release()
		return existing, nil
	}

	el := c.ll.PushFront(&windowEntry{key: key, win: w})
	c.items[key] = el
	c.size += int64(len(buf))
	c.evictLocked()

	return w, nil
}

// evictLocked drops least-recently-used, currently-unpinned windows until
// the cache is within its byte limit, or until no unpinned window remains.
// Must be called with c.mu held.
func (c *WindowCache) evictLocked() {
	for c.size > c.limit {
		var victim *list.Element
		for el := c.ll.Back(); el != nil; el = el.Prev() {
			e := el.Value.(*windowEntry)
			if !e.win.pinned() {
				victim = el
				break
			}
		}
		if victim == nil {
			return
		}
		e := victim.Value.(*windowEntry)
		c.ll.Remove(victim)
		delete(c.items, e.key)
		c.size -= int64(len(e.win.Data))
	}
}

// Len reports the number of windows currently cached.
func (c *WindowCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
