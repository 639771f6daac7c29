package packfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeLEB128 is the test-side mirror of decodeLEB128, used to build
// fixture delta streams by hand.
func encodeLEB128(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			break
		}
	}
	return out
}

func TestApplyDeltaCopyAndInsert(t *testing.T) {
	base := []byte("The quick brown fox jumps over the lazy dog")
	target := []byte("The quick brown cat jumps over the lazy dog and runs away")

	var delta []byte
	delta = append(delta, encodeLEB128(uint64(len(base)))...)
	delta = append(delta, encodeLEB128(uint64(len(target)))...)

	// copy "The quick brown " (offset 0, size 16)
	delta = append(delta, 0x80|0x01|0x10, 0x00, 0x10)
	// insert "cat"
	delta = append(delta, byte(len("cat")))
	delta = append(delta, "cat"...)
	// copy " jumps over the lazy dog" (offset 19, size 24)
	delta = append(delta, 0x80|0x01|0x10, 19, 24)
	// insert " and runs away"
	insert := " and runs away"
	delta = append(delta, byte(len(insert)))
	delta = append(delta, insert...)

	got, err := applyDelta(base, delta)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestApplyDeltaRejectsSourceSizeMismatch(t *testing.T) {
	base := []byte("hello")
	var delta []byte
	delta = append(delta, encodeLEB128(999)...)
	delta = append(delta, encodeLEB128(0)...)

	_, err := applyDelta(base, delta)
	require.ErrorIs(t, err, ErrInvalidDelta)
}

func TestApplyDeltaRejectsCopyOutOfRange(t *testing.T) {
	base := []byte("hello")
	var delta []byte
	delta = append(delta, encodeLEB128(uint64(len(base)))...)
	delta = append(delta, encodeLEB128(10)...)
	// copy offset=0, size=10 > len(base)
	delta = append(delta, 0x80|0x01|0x10, 0x00, 10)

	_, err := applyDelta(base, delta)
	require.ErrorIs(t, err, ErrInvalidDelta)
}

func TestApplyDeltaRejectsZeroCommandByte(t *testing.T) {
	base := []byte("hello")
	var delta []byte
	delta = append(delta, encodeLEB128(uint64(len(base)))...)
	delta = append(delta, encodeLEB128(1)...)
	delta = append(delta, 0x00)

	_, err := applyDelta(base, delta)
	require.ErrorIs(t, err, ErrInvalidDelta)
}

func TestApplyDeltaZeroSizeMeans64KiB(t *testing.T) {
	base := make([]byte, 0x10000)
	for i := range base {
		base[i] = byte(i)
	}

	var delta []byte
	delta = append(delta, encodeLEB128(uint64(len(base)))...)
	delta = append(delta, encodeLEB128(uint64(len(base)))...)
	// copy offset=0, size field omitted entirely -> 0x10000
	delta = append(delta, 0x80|0x01, 0x00)

	got, err := applyDelta(base, delta)
	require.NoError(t, err)
	require.Equal(t, base, got)
}
