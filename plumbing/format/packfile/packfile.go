// Package packfile decodes Git's pack file format (spec.md §3.1/§4.4): the
// "PACK" header, a sequence of object entries each carrying a 3-bit-type +
// variable-length-size header followed by zlib-compressed content (raw, or
// an OFS_DELTA/REF_DELTA chain), and a trailing SHA-1 checksum of everything
// preceding it.
package packfile

import (
	"crypto/sha1"
	"errors"

	"github.com/yamaritta/ngit/plumbing"
)

// Version identifies the pack format version.
type Version uint32

// VersionSupported is the only version this decoder understands.
const VersionSupported Version = 2

// Supported reports whether v can be decoded.
func (v Version) Supported() bool { return v == VersionSupported }

var signature = []byte("PACK")

var (
	// ErrEmptyPackfile is returned when no bytes at all are found.
	ErrEmptyPackfile = errors.New("packfile: empty packfile")
	// ErrBadSignature is returned when the leading 4 bytes aren't "PACK".
	ErrBadSignature = errors.New("packfile: malformed signature")
	// ErrMalformedPackfile covers any other structural inconsistency.
	ErrMalformedPackfile = errors.New("packfile: malformed pack file")
	// ErrUnsupportedVersion is returned for any version other than 2.
	ErrUnsupportedVersion = errors.New("packfile: unsupported version")
	// ErrInvalidDelta is returned when a delta stream is corrupt.
	ErrInvalidDelta = errors.New("packfile: invalid delta")
	// ErrMaxDeltaDepth is returned when a delta chain exceeds the configured
	// depth limit (spec.md §4.4, cycle/runaway-chain guard).
	ErrMaxDeltaDepth = errors.New("packfile: delta chain too deep")
	// ErrDeltaCycle is returned when a delta chain revisits an offset,
	// which can only happen in a corrupt or adversarial pack.
	ErrDeltaCycle = errors.New("packfile: delta chain cycle")
	// ErrReferenceDeltaNotFound is returned when a REF_DELTA's base id
	// isn't resolvable, either in this pack or the caller-supplied lookup.
	ErrReferenceDeltaNotFound = errors.New("packfile: delta base not found")
)

// Header is the decoded "PACK" + version + object count prologue.
type Header struct {
	Version    Version
	ObjectsQty uint32
}

// ObjectHeader describes one entry's metadata as scanned, before any delta
// resolution: its pack offset, on-disk type, declared inflated size, and
// (for delta entries) the base reference, plus the CRC-32 of its
// compressed bytes (spec.md §3.1 invariant, §4.4).
type ObjectHeader struct {
	Offset int64
	Type   plumbing.ObjectType
	Size   int64
	Crc32  uint32

	// ContentOffset is the byte offset where the zlib stream begins,
	// immediately after the variable-length header (and, for delta
	// entries, the base reference).
	ContentOffset int64

	// OffsetReference is set for OFS_DELTA entries: the pack offset of
	// the base object, computed as Offset - n for the decoded negative
	// offset n.
	OffsetReference int64
	// HashReference is set for REF_DELTA entries: the id of the base
	// object, which may live earlier in this pack or in another pack
	// (thin packs).
	HashReference plumbing.Hash
}

// maxDeltaDepth bounds delta chain walks (spec.md §4.4): a chain longer
// than this, or one that revisits an offset, is rejected rather than
// followed indefinitely.
const maxDeltaDepth = 50

// streamThreshold is the inflated-size threshold above which PackFile.Get
// hands back a streaming object rather than materializing it in memory
// (spec.md §4.4).
const streamThreshold = 20 * 1024 * 1024

// checksumSize is the width of the pack trailer.
const checksumSize = sha1.Size
