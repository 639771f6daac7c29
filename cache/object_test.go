package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/plumbing"
)

func newTestObject(typ plumbing.ObjectType, content string) *plumbing.MemoryObject {
	o := plumbing.NewMemoryObject()
	o.SetType(typ)
	o.SetContent([]byte(content))
	return o
}

func TestObjectLRUPutGet(t *testing.T) {
	c := NewObjectLRU(1 * KiByte)
	o := newTestObject(plumbing.BlobObject, "hello world")
	c.Put(o)

	got, ok := c.Get(o.Hash())
	require.True(t, ok)
	require.Equal(t, o, got)
}

func TestObjectLRUGetMissing(t *testing.T) {
	c := NewObjectLRU(1 * KiByte)
	_, ok := c.Get(plumbing.ZeroHash)
	require.False(t, ok)
}

func TestObjectLRUEvictsOldestOverLimit(t *testing.T) {
	c := NewObjectLRU(20)

	a := newTestObject(plumbing.BlobObject, "0123456789")
	b := newTestObject(plumbing.BlobObject, "abcdefghij")
	cc := newTestObject(plumbing.BlobObject, "ABCDEFGHIJ")

	c.Put(a)
	c.Put(b)
	c.Put(cc)

	_, ok := c.Get(a.Hash())
	require.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get(b.Hash())
	require.True(t, ok)
	_, ok = c.Get(cc.Hash())
	require.True(t, ok)
}

func TestObjectLRURejectsOversizedObject(t *testing.T) {
	c := NewObjectLRU(5)
	o := newTestObject(plumbing.BlobObject, "this content is far larger than five bytes")
	c.Put(o)

	_, ok := c.Get(o.Hash())
	require.False(t, ok)
}

func TestObjectLRUPutSameObjectWithDifferentSize(t *testing.T) {
	c := NewObjectLRU(1 * KiByte)

	o := plumbing.NewMemoryObject()
	o.SetType(plumbing.BlobObject)
	o.SetContent([]byte("short"))
	h := o.Hash()
	c.Put(o)

	o2 := plumbing.NewMemoryObject()
	o2.SetType(plumbing.BlobObject)
	o2.SetContent([]byte("short"))
	o2.SetSize(500)
	c.Put(o2)

	require.Equal(t, FileSize(500), c.actualSize)

	got, ok := c.Get(h)
	require.True(t, ok)
	require.Equal(t, int64(500), got.Size())
}

func TestObjectLRUClear(t *testing.T) {
	c := NewObjectLRU(1 * KiByte)
	c.Put(newTestObject(plumbing.BlobObject, "x"))
	c.Clear()

	require.Equal(t, FileSize(0), c.actualSize)
	require.Equal(t, 0, c.inner.Len())
}

func TestNewObjectLRUDefault(t *testing.T) {
	c := NewObjectLRUDefault()
	require.Equal(t, 96*MiByte, c.MaxSize)
}
