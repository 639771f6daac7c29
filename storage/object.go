package storage

import (
	"errors"
	"io"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/format/packfile"
)

// errObjectReadOnly is returned by Writer() on an EncodedObject produced by
// an ObjectDatabase read path; mutating a decoded pack or loose entry in
// place makes no sense, only NewEncodedObject() objects are writable.
var errObjectReadOnly = errors.New("storage: object is read-only")

// packObject adapts a packfile.Loader (an already delta-resolved object
// living at some pack offset) to plumbing.EncodedObject, attaching the id
// the caller looked it up by rather than recomputing it.
type packObject struct {
	hash plumbing.Hash
	l    packfile.Loader
}

func newPackObject(h plumbing.Hash, l packfile.Loader) *packObject {
	return &packObject{hash: h, l: l}
}

func (o *packObject) Hash() plumbing.Hash       { return o.hash }
func (o *packObject) Type() plumbing.ObjectType { return o.l.Type() }
func (o *packObject) SetType(plumbing.ObjectType) {
	// The type is fixed by the pack's own delta-resolved content; nothing
	// upstream of EncodedObject() ever needs to override it.
}
func (o *packObject) Size() int64     { return o.l.Size() }
func (o *packObject) SetSize(int64)   {}
func (o *packObject) IsLarge() bool   { return o.l.IsLarge() }
func (o *packObject) Reader() (io.ReadCloser, error) {
	return o.l.Reader()
}
func (o *packObject) Writer() (io.WriteCloser, error) {
	return nil, errObjectReadOnly
}

// databaseObject wraps a plumbing.MemoryObject with a size-derived
// LargeObject verdict, used for loose objects decoded straight into memory.
// The object is still fully materialized (objfile.Reader has already read
// it once to verify its hash), so IsLarge is advisory only: it tells a
// caller with its own size ceiling (e.g. the revision resolver peeling a
// tag) not to copy it again, not that the bytes aren't already in hand.
type databaseObject struct {
	*plumbing.MemoryObject
	large bool
}

func newDatabaseObject(o *plumbing.MemoryObject, threshold int64) *databaseObject {
	return &databaseObject{MemoryObject: o, large: threshold > 0 && o.Size() > threshold}
}

func (o *databaseObject) IsLarge() bool { return o.large }

// looseStreamObject is the EncodedObject returned for a loose object whose
// declared size is at or above the stream threshold (spec.md §4.5 point
// 2): unlike databaseObject it never holds the payload itself, only the
// header metadata and an open func that reopens the backing file fresh on
// each Reader() call.
type looseStreamObject struct {
	hash plumbing.Hash
	typ  plumbing.ObjectType
	size int64
	open func() (io.ReadCloser, error)
}

func newLooseStreamObject(h plumbing.Hash, typ plumbing.ObjectType, size int64, open func() (io.ReadCloser, error)) *looseStreamObject {
	return &looseStreamObject{hash: h, typ: typ, size: size, open: open}
}

func (o *looseStreamObject) Hash() plumbing.Hash       { return o.hash }
func (o *looseStreamObject) Type() plumbing.ObjectType { return o.typ }
func (o *looseStreamObject) SetType(plumbing.ObjectType) {
	// Fixed by what's already on disk; see packObject.SetType.
}
func (o *looseStreamObject) Size() int64   { return o.size }
func (o *looseStreamObject) SetSize(int64) {}
func (o *looseStreamObject) IsLarge() bool { return true }
func (o *looseStreamObject) Reader() (io.ReadCloser, error) {
	return o.open()
}
func (o *looseStreamObject) Writer() (io.WriteCloser, error) {
	return nil, errObjectReadOnly
}
