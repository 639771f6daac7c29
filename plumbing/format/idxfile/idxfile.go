// Package idxfile decodes pack index files (.idx), both the legacy v1
// layout and the v2 layout described in spec.md §3.1/§6, and provides
// id -> offset and offset -> id lookups (spec.md §4.3).
package idxfile

import (
	"errors"

	"github.com/yamaritta/ngit/plumbing"
)

// Version1 and Version2 are the index format versions this package can parse.
const (
	Version1 = 1
	Version2 = 2
)

var (
	// ErrMalformedIdxFile is returned when the header, fanout table, or
	// trailer are internally inconsistent.
	ErrMalformedIdxFile = errors.New("idxfile: malformed index")
	// ErrUnsupportedVersion is returned for any version other than 1 or 2.
	ErrUnsupportedVersion = errors.New("idxfile: unsupported version")
	// ErrObjectNotFound is returned by FindOffset/FindHash when the id or
	// offset is not present in this index.
	ErrObjectNotFound = errors.New("idxfile: object not found")
)

// idxSignature is the magic 4 bytes that opens a v2 index
// ("\xfftOc", spec.md §6).
var idxSignature = [4]byte{0xff, 't', 'O', 'c'}

// Index is the read contract the object database and the packfile decoder
// use against a pack's companion index. MemoryIndex, which holds the whole
// decoded index in memory, is the implementation this package provides.
type Index interface {
	// FindOffset returns the pack offset of the object with id h.
	FindOffset(h plumbing.Hash) (uint64, error)
	// FindHash returns the object id stored at pack offset off.
	FindHash(off uint64) (plumbing.Hash, error)
	// Contains reports whether h is present in this index.
	Contains(h plumbing.Hash) bool
	// Count returns the number of objects indexed.
	Count() int
	// Resolve returns every id matching the abbreviation, up to
	// maxMatches+1 entries so callers can detect ambiguity
	// (spec.md §4.3).
	Resolve(a plumbing.AbbreviatedHash, maxMatches int) ([]plumbing.Hash, error)
	// CRC32 returns the CRC-32 of the packed (compressed) bytes for h, if
	// the underlying format recorded one (v2 only).
	CRC32(h plumbing.Hash) (uint32, error)
	// Entries returns every id in ascending order.
	Entries() []plumbing.Hash
}

// checkFanoutMonotonic checks the fanout table's side of invariant 2
// (spec.md §3.2): each bucket's cumulative count must be non-decreasing
// across leading bytes. It does not compare the ids themselves.
func checkFanoutMonotonic(fanout [256]uint32) error {
	var prev uint32
	for _, c := range fanout {
		if c < prev {
			return ErrMalformedIdxFile
		}
		prev = c
	}
	return nil
}

// fanoutBounds returns the [lo, hi) slice bounds within the ids table for
// the given leading byte, per spec.md §4.3.
func fanoutBounds(fanout [256]uint32, firstByte byte) (lo, hi uint32) {
	if firstByte > 0 {
		lo = fanout[firstByte-1]
	}
	hi = fanout[firstByte]
	return
}
