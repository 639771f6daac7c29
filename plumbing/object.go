package plumbing

import (
	"bytes"
	"io"

	"github.com/yamaritta/ngit/hash"
)

// Hash re-exports hash.Hash at the plumbing layer, matching the teacher's
// own `type Hash = ObjectID` alias (plumbing/hash.go) — most callers only
// ever see Hash, never the hash package directly.
type Hash = hash.Hash

// ZeroHash is the distinguished "no such object" id.
var ZeroHash = hash.ZeroHash

// HashSize is the number of bytes in a Hash, the width of the id field
// trailing every tree entry (spec.md §4.10).
const HashSize = hash.Size

// AbbreviatedHash re-exports hash.AbbreviatedHash.
type AbbreviatedHash = hash.AbbreviatedHash

// EncodedObject is the storage-independent representation of a Git object:
// whatever decoded it — a loose file, a non-delta pack entry, or a
// materialized delta chain — exposes this same seam (spec.md §3.1).
type EncodedObject interface {
	Hash() Hash
	Type() ObjectType
	SetType(ObjectType)
	Size() int64
	SetSize(int64)
	Reader() (io.ReadCloser, error)
	Writer() (io.WriteCloser, error)
}

// LargeObject is implemented by an EncodedObject that knows its payload
// exceeds the configured streaming threshold; callers that would otherwise
// buffer the whole object (e.g. before hashing it a second time) should
// check for this interface and fall back to Reader() instead.
type LargeObject interface {
	IsLarge() bool
}

// MemoryObject is an EncodedObject fully materialized in memory. It is the
// default representation produced by the loose object store and by
// pack entries at or under the pack's stream threshold.
type MemoryObject struct {
	typ  ObjectType
	hash Hash
	size int64
	cont []byte
}

// NewMemoryObject returns an empty MemoryObject; the caller sets its type
// with SetType.
func NewMemoryObject() *MemoryObject {
	return &MemoryObject{}
}

func (o *MemoryObject) Hash() Hash          { return o.hash }
func (o *MemoryObject) Type() ObjectType    { return o.typ }
func (o *MemoryObject) SetType(t ObjectType) { o.typ = t }
func (o *MemoryObject) Size() int64         { return o.size }
func (o *MemoryObject) SetSize(s int64)     { o.size = s }

// Reader returns a reader over the object's payload.
func (o *MemoryObject) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(o.cont)), nil
}

// Writer returns a writer that replaces the object's payload; closing it
// recomputes both Size and Hash from the accumulated bytes.
func (o *MemoryObject) Writer() (io.WriteCloser, error) {
	return &memoryObjectWriter{o: o}, nil
}

// SetContent directly assigns the payload and recomputes size and hash.
// Used by decoders that already have the full byte slice in hand.
func (o *MemoryObject) SetContent(b []byte) {
	o.cont = b
	o.size = int64(len(b))
	o.hash = HashObject(o.typ, b)
}

// Bytes returns the raw payload. Callers must not mutate the result.
func (o *MemoryObject) Bytes() []byte {
	return o.cont
}

type memoryObjectWriter struct {
	o   *MemoryObject
	buf bytes.Buffer
}

func (w *memoryObjectWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memoryObjectWriter) Close() error {
	w.o.SetContent(w.buf.Bytes())
	return nil
}

// HashObject computes the id a stored object of type t and payload b would
// have: the SHA-1 of "<type> <size>\0<payload>" (spec.md §3.1, invariant 1).
func HashObject(t ObjectType, b []byte) Hash {
	h := hash.NewHasher(t.String(), int64(len(b)))
	h.Write(b)
	return h.Sum()
}

// ReadAllAndHash reads r fully and returns both the bytes and the hash the
// resulting object would carry, failing the read early is the caller's
// responsibility (used by readers that must verify integrity at read,
// spec.md §3.2 invariant 6).
func ReadAllAndHash(t ObjectType, size int64, r io.Reader) ([]byte, Hash, error) {
	b, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return nil, ZeroHash, err
	}
	return b, HashObject(t, b), nil
}
