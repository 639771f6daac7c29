// Package hash implements the object identifiers used throughout ngit: a
// fixed-width content hash (Hash), and a variable-length prefix of one
// (AbbreviatedHash) sufficient to disambiguate within a database.
package hash

import (
	"bytes"
	"encoding/hex"
	"errors"
	"sort"
)

// Size is the number of bytes in a Hash. ngit implements the SHA-1 object
// format only; see SPEC_FULL.md §4.1 for why the SHA-256 format the teacher
// supports is left as an unimplemented extension point.
const Size = 20

// HexSize is the number of hexadecimal characters in a Hash's string form.
const HexSize = Size * 2

// ErrInvalidHash is returned when a string or byte slice cannot be parsed
// into a Hash.
var ErrInvalidHash = errors.New("hash: invalid object id")

// ErrInvalidLength is returned by Abbreviate when the requested length is
// outside [2, HexSize].
var ErrInvalidLength = errors.New("hash: invalid abbreviation length")

// Hash is the 20-byte identifier of a Git object: the SHA-1 of its
// "<type> <size>\0<payload>" encoding. The zero value is the distinguished
// "zero hash", used to mean "no such object" / "ref did not previously
// exist".
type Hash [Size]byte

// ZeroHash is a Hash with all bytes zero.
var ZeroHash Hash

// FromHex parses exactly HexSize hexadecimal characters into a Hash.
func FromHex(s string) (Hash, error) {
	var h Hash
	if len(s) != HexSize {
		return h, ErrInvalidHash
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, ErrInvalidHash
	}
	copy(h[:], b)
	return h, nil
}

// FromBytes copies exactly Size bytes into a Hash.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, ErrInvalidHash
	}
	copy(h[:], b)
	return h, nil
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String returns the 40-character lowercase hexadecimal representation.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the raw 20 bytes of h.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Compare compares h's bytes against an arbitrary byte slice, as
// bytes.Compare would.
func (h Hash) Compare(b []byte) int {
	return bytes.Compare(h[:], b)
}

// Less reports whether h sorts before other.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// Sum32 returns the first four bytes of h interpreted as a big-endian
// uint32, suitable for use as a hash-map bucket key (spec.md §4.1).
func (h Hash) Sum32() uint32 {
	return uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
}

// StartsWith reports whether a is a prefix of h (the companion operation to
// AbbreviatedHash.PrefixCompare, documented on the full id per spec.md §4.1).
func (h Hash) StartsWith(a AbbreviatedHash) bool {
	return a.PrefixCompare(h) == 0
}

// Slice attaches sort.Interface to a []Hash, sorting by increasing value.
type Slice []Hash

func (s Slice) Len() int           { return len(s) }
func (s Slice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Sort sorts a slice of Hashes in increasing order.
func Sort(s []Hash) {
	sort.Sort(Slice(s))
}
