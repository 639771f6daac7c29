package idxfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
)

// entry is one object's record within a decoded index.
type entry struct {
	hash   plumbing.Hash
	crc32  uint32
	offset uint64
}

// MemoryIndex is a fully decoded pack index held in memory, supporting both
// the v1 layout (fanout + interleaved offset/id pairs) and the v2 layout
// (fanout + id table + CRC table + offset table + optional 64-bit offset
// table), grounded on the teacher's formats/idxfile/idxfile.go (v1 shape)
// and storage/filesystem/readerat/idxfile.go (v2 column layout).
type MemoryIndex struct {
	version  uint32
	fanout   [256]uint32
	entries  []entry
	byOffset []int // indices into entries, sorted by offset, for FindHash
}

// Decode parses a .idx file from r.
func Decode(r io.Reader) (*MemoryIndex, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: reading signature: %w", ErrMalformedIdxFile, err)
	}

	if magic == idxSignature {
		return decodeV2(br)
	}

	// v1 has no magic: the first 4 bytes are the first fanout entry.
	return decodeV1(magic, br)
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func decodeV1(first [4]byte, r io.Reader) (*MemoryIndex, error) {
	idx := &MemoryIndex{version: Version1}

	idx.fanout[0] = binary.BigEndian.Uint32(first[:])
	for i := 1; i < 256; i++ {
		v, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading fanout: %w", ErrMalformedIdxFile, err)
		}
		idx.fanout[i] = v
	}

	if err := checkFanoutMonotonic(idx.fanout); err != nil {
		return nil, err
	}

	count := int(idx.fanout[255])
	idx.entries = make([]entry, count)
	for i := 0; i < count; i++ {
		off, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading offset %d: %w", ErrMalformedIdxFile, i, err)
		}
		var h [hash.Size]byte
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return nil, fmt.Errorf("%w: reading id %d: %w", ErrMalformedIdxFile, i, err)
		}
		idx.entries[i] = entry{hash: h, offset: uint64(off)}
	}

	idx.finish()
	return idx, nil
}

func decodeV2(r io.Reader) (*MemoryIndex, error) {
	idx := &MemoryIndex{version: Version2}

	version, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading version: %w", ErrMalformedIdxFile, err)
	}
	if version != Version2 {
		return nil, ErrUnsupportedVersion
	}

	for i := 0; i < 256; i++ {
		v, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading fanout: %w", ErrMalformedIdxFile, err)
		}
		idx.fanout[i] = v
	}

	if err := checkFanoutMonotonic(idx.fanout); err != nil {
		return nil, err
	}

	count := int(idx.fanout[255])
	idx.entries = make([]entry, count)

	for i := 0; i < count; i++ {
		var h [hash.Size]byte
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return nil, fmt.Errorf("%w: reading id %d: %w", ErrMalformedIdxFile, i, err)
		}
		idx.entries[i].hash = h
	}

	for i := 0; i < count; i++ {
		v, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading crc32 %d: %w", ErrMalformedIdxFile, i, err)
		}
		idx.entries[i].crc32 = v
	}

	off32 := make([]uint32, count)
	var largeCount int
	for i := 0; i < count; i++ {
		v, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading offset32 %d: %w", ErrMalformedIdxFile, i, err)
		}
		off32[i] = v
		if v&0x80000000 != 0 {
			largeCount++
		}
	}

	off64 := make([]uint64, largeCount)
	for i := 0; i < largeCount; i++ {
		hi, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading offset64 hi %d: %w", ErrMalformedIdxFile, i, err)
		}
		lo, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading offset64 lo %d: %w", ErrMalformedIdxFile, i, err)
		}
		off64[i] = uint64(hi)<<32 | uint64(lo)
	}

	for i := 0; i < count; i++ {
		if off32[i]&0x80000000 != 0 {
			idx64 := off32[i] & 0x7fffffff
			if int(idx64) >= len(off64) {
				return nil, fmt.Errorf("%w: offset64 index out of range", ErrMalformedIdxFile)
			}
			idx.entries[i].offset = off64[idx64]
		} else {
			idx.entries[i].offset = uint64(off32[i])
		}
	}

	// packfile checksum + idx checksum trailers follow; not needed for
	// lookups, read-and-discard so callers can treat the stream as fully
	// consumed.
	var trailer [hash.Size * 2]byte
	_, _ = io.ReadFull(r, trailer[:])

	idx.finish()
	return idx, nil
}

func (idx *MemoryIndex) finish() {
	idx.byOffset = make([]int, len(idx.entries))
	for i := range idx.entries {
		idx.byOffset[i] = i
	}
	sort.Slice(idx.byOffset, func(i, j int) bool {
		return idx.entries[idx.byOffset[i]].offset < idx.entries[idx.byOffset[j]].offset
	})
}

// Count returns the number of indexed objects.
func (idx *MemoryIndex) Count() int { return len(idx.entries) }

// Entries returns every id in ascending order (the order they're physically
// stored in, per invariant 2).
func (idx *MemoryIndex) Entries() []plumbing.Hash {
	out := make([]plumbing.Hash, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = e.hash
	}
	return out
}

// search performs the fanout-bounded binary search described in spec.md
// §4.3, returning the entry index or -1.
func (idx *MemoryIndex) search(h plumbing.Hash) int {
	lo, hi := fanoutBounds(idx.fanout, h[0])
	entries := idx.entries

	pos := sort.Search(int(hi-lo), func(i int) bool {
		return entries[int(lo)+i].hash.Compare(h[:]) >= 0
	})
	at := int(lo) + pos
	if at < int(hi) && entries[at].hash == h {
		return at
	}
	return -1
}

// FindOffset implements Index.
func (idx *MemoryIndex) FindOffset(h plumbing.Hash) (uint64, error) {
	i := idx.search(h)
	if i < 0 {
		return 0, ErrObjectNotFound
	}
	return idx.entries[i].offset, nil
}

// FindHash implements Index via a binary search over the offset-sorted
// index built at decode time (spec.md §4.3, "iterate(); yields ids in
// ascending order"; reverse lookup by offset mirrors the teacher's
// rev-file-backed FindHash in storage/filesystem/readerat/scan.go, here
// done in memory instead of via a companion .rev file).
func (idx *MemoryIndex) FindHash(off uint64) (plumbing.Hash, error) {
	entries := idx.entries
	byOff := idx.byOffset
	pos := sort.Search(len(byOff), func(i int) bool {
		return entries[byOff[i]].offset >= off
	})
	if pos < len(byOff) && entries[byOff[pos]].offset == off {
		return entries[byOff[pos]].hash, nil
	}
	return plumbing.ZeroHash, ErrObjectNotFound
}

// Contains implements Index.
func (idx *MemoryIndex) Contains(h plumbing.Hash) bool {
	return idx.search(h) >= 0
}

// CRC32 implements Index. v1 indexes never recorded a CRC32, so it returns
// ErrObjectNotFound in that case even when the id itself is present.
func (idx *MemoryIndex) CRC32(h plumbing.Hash) (uint32, error) {
	if idx.version < Version2 {
		return 0, ErrObjectNotFound
	}
	i := idx.search(h)
	if i < 0 {
		return 0, ErrObjectNotFound
	}
	return idx.entries[i].crc32, nil
}

// Resolve implements Index, returning up to maxMatches+1 candidates so the
// caller can distinguish "exactly one match" from "ambiguous"
// (spec.md §4.3).
func (idx *MemoryIndex) Resolve(a plumbing.AbbreviatedHash, maxMatches int) ([]plumbing.Hash, error) {
	if maxMatches <= 0 {
		maxMatches = 1
	}

	// Narrow to the fanout bucket of the abbreviation's first byte, then
	// linearly scan the bucket for entries that share the prefix: the
	// bucket is small and entries are sorted, so this is the cheap case;
	// for worst-case-adversarial inputs it is still bounded by bucket
	// size, which the fanout table keeps small in practice.
	first, err := firstByteOf(a)
	if err != nil {
		return nil, err
	}
	lo, hi := fanoutBounds(idx.fanout, first)

	var out []plumbing.Hash
	for i := lo; i < hi; i++ {
		e := idx.entries[i]
		if a.PrefixCompare(e.hash) == 0 {
			out = append(out, e.hash)
			if len(out) > maxMatches {
				break
			}
		}
	}
	return out, nil
}

// firstByteOf recovers the leading byte an abbreviation would compare
// against in the fanout table; an abbreviation always has at least 2
// nibbles (one full byte) by construction (hash.Abbreviate).
func firstByteOf(a plumbing.AbbreviatedHash) (byte, error) {
	s := a.String()
	if len(s) < 2 {
		return 0, ErrMalformedIdxFile
	}
	var b [1]byte
	n, err := fmt.Sscanf(s[:2], "%02x", &b[0])
	if err != nil || n != 1 {
		return 0, ErrMalformedIdxFile
	}
	return b[0], nil
}
