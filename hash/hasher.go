package hash

import (
	stdhash "hash"
	"strconv"

	"github.com/pjbgf/sha1cd"
)

// The hasher takes the object type as its name string rather than as
// plumbing's ObjectType: that enum lives in package plumbing, which the
// hasher must not import (it would create an import cycle, since plumbing
// itself hashes objects).

// Hasher wraps a collision-detecting SHA-1 implementation
// (github.com/pjbgf/sha1cd, exactly as wired in the teacher's
// plumbing/hash/hash.go) and frames the object header the way Git does:
// "<type> <size>\0" followed by the payload.
type Hasher struct {
	stdhash.Hash
}

// NewHasher returns a Hasher reset for the given type tag and payload size.
func NewHasher(typeTag string, size int64) Hasher {
	h := Hasher{Hash: sha1cd.New()}
	h.Reset(typeTag, size)
	return h
}

// Reset reinitializes the hasher with a new object header.
func (h Hasher) Reset(typeTag string, size int64) {
	h.Hash.Reset()
	h.Write([]byte(typeTag))
	h.Write([]byte(" "))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
}

// Sum returns the hash computed so far as a Hash.
func (h Hasher) Sum() Hash {
	var out Hash
	copy(out[:], h.Hash.Sum(nil))
	return out
}
