package packfile

import (
	"io"

	"github.com/yamaritta/ngit/plumbing"
)

// readObjectHeaderByte decodes an object entry's first header byte and its
// variable-length size continuation (spec.md §3.1): the first byte packs a
// 3-bit type in bits 4-6 and the low 4 size bits in bits 0-3; each
// following byte, while the top (continuation) bit is set, contributes 7
// more size bits, least-significant group first.
func readObjectHeaderByte(r io.ByteReader) (plumbing.ObjectType, int64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	typ := plumbing.ObjectType((first >> 4) & 0x07)
	size := int64(first & 0x0f)
	shift := uint(4)

	for first&0x80 != 0 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		size |= int64(b&0x7f) << shift
		shift += 7
		first = b
	}

	return typ, size, nil
}

// readOffsetDelta decodes an OFS_DELTA's negative offset varint: a
// big-endian-ish base-128 encoding where every byte but the last has its
// top bit set, and each continuation byte after the first represents a
// value one greater than the raw 7 bits encode (the "+1 disambiguator"
// that keeps the encoding minimal, per gitformat-pack).
func readOffsetDelta(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	n := int64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		n++
		n = (n << 7) | int64(b&0x7f)
	}
	return n, nil
}

// decodeLEB128 reads a delta-stream size field: a little-endian base-128
// varint with no "+1" adjustment, used for the source/target size prefixes
// of a delta (spec.md §3.1, delta encoding). Copy/insert command sizes use
// the command byte's flag bits instead and are not read here.
func decodeLEB128(r io.ByteReader) (uint64, error) {
	var n uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		n |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return n, nil
}
