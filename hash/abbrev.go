package hash

import (
	"encoding/hex"
)

// AbbreviatedHash is a prefix of a Hash, carrying between 2 and HexSize hex
// nibbles (spec.md §4.1). An odd nibble count is tracked explicitly: the
// trailing nibble is stored in the high bits of the last byte in prefix,
// and only that half-byte participates in comparisons.
type AbbreviatedHash struct {
	prefix []byte // ceil(nibbles/2) bytes, nibbles stored big-endian
	nibble int    // number of hex nibbles, 2..HexSize
}

// Abbreviate parses a hexadecimal prefix string of length 2..HexSize into an
// AbbreviatedHash.
func Abbreviate(s string) (AbbreviatedHash, error) {
	var a AbbreviatedHash
	n := len(s)
	if n < 2 || n > HexSize {
		return a, ErrInvalidLength
	}

	padded := s
	odd := n%2 != 0
	if odd {
		padded = s + "0"
	}

	b, err := hex.DecodeString(padded)
	if err != nil {
		return a, ErrInvalidHash
	}

	return AbbreviatedHash{prefix: b, nibble: n}, nil
}

// AbbreviateHash truncates a full Hash to the given number of hex nibbles.
func AbbreviateHash(h Hash, nibbles int) (AbbreviatedHash, error) {
	if nibbles < 2 || nibbles > HexSize {
		return AbbreviatedHash{}, ErrInvalidLength
	}
	nBytes := (nibbles + 1) / 2
	prefix := make([]byte, nBytes)
	copy(prefix, h[:nBytes])
	if nibbles%2 != 0 {
		// Clear the low nibble of the last byte: it isn't part of the prefix.
		prefix[nBytes-1] &= 0xf0
	}
	return AbbreviatedHash{prefix: prefix, nibble: nibbles}, nil
}

// Len returns the number of hex nibbles in the abbreviation.
func (a AbbreviatedHash) Len() int {
	return a.nibble
}

// String returns the abbreviation's hexadecimal text.
func (a AbbreviatedHash) String() string {
	s := hex.EncodeToString(a.prefix)
	if a.nibble%2 != 0 {
		s = s[:len(s)-1]
	}
	return s
}

// PrefixCompare compares the abbreviation's nibbles against a full Hash,
// returning negative, zero, or positive as bytes.Compare would, with zero
// meaning "full starts with this prefix" (spec.md §4.1).
func (a AbbreviatedHash) PrefixCompare(full Hash) int {
	fullBytes := full[:]
	wholeBytes := a.nibble / 2

	for i := 0; i < wholeBytes; i++ {
		if d := int(a.prefix[i]) - int(fullBytes[i]); d != 0 {
			return d
		}
	}

	if a.nibble%2 == 0 {
		return 0
	}

	// Compare only the high nibble of the final byte.
	want := a.prefix[wholeBytes] & 0xf0
	got := fullBytes[wholeBytes] & 0xf0
	return int(want) - int(got)
}
