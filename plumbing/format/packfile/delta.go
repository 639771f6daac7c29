package packfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// isCopyFromBase and isCopyFromDelta test for the two delta command shapes: a
// leading bit set to 1 means "copy sz bytes from base starting at offset"
// (with offset/size fields present only for the nibbles whose bit is set),
// a leading bit of 0 with a nonzero byte means "copy the next cmd bytes
// literally from the delta stream itself" (spec.md §3.1, delta encoding).
const maskContinue = 0x80

var offsetBits = []struct {
	mask  byte
	shift uint
}{
	{0x01, 0}, {0x02, 8}, {0x04, 16}, {0x08, 24},
}

var sizeBits = []struct {
	mask  byte
	shift uint
}{
	{0x10, 0}, {0x20, 8}, {0x40, 16},
}

const maxCopySize = 0x10000

func isCopyFromBase(cmd byte) bool  { return cmd&maskContinue != 0 }
func isCopyFromDelta(cmd byte) bool { return cmd&maskContinue == 0 && cmd != 0 }

// applyDelta reconstructs the target payload by replaying delta's
// copy/insert commands against base (spec.md §4.4: "apply a delta chain
// bottom-up to materialize the target"). It is a thin bytes.Buffer-backed
// wrapper over applyDeltaTo, kept for callers (and tests) that want the
// result as a single slice; decoder.go's full-pack ingestion is one.
func applyDelta(base, delta []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := applyDeltaTo(&buf, base, bytes.NewReader(delta)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// applyDeltaTo is applyDelta's streaming core: it writes the reconstructed
// target straight to w as each command is decoded, so a caller never has to
// hold the full target in memory to produce it (spec.md §4.4's large-object
// streaming). base is still read randomly in full, since copy commands can
// reference any offset within it. It validates the declared base size
// against len(base) and enforces that every copy command stays within both
// the base and the declared target size, rejecting corrupt deltas rather
// than silently truncating or overrunning.
func applyDeltaTo(w io.Writer, base []byte, delta io.Reader) error {
	r := bufio.NewReader(delta)

	srcSz, err := decodeLEB128(r)
	if err != nil {
		return fmt.Errorf("%w: reading source size: %w", ErrInvalidDelta, err)
	}
	if srcSz != uint64(len(base)) {
		return fmt.Errorf("%w: source size mismatch", ErrInvalidDelta)
	}

	targetSz, err := decodeLEB128(r)
	if err != nil {
		return fmt.Errorf("%w: reading target size: %w", ErrInvalidDelta, err)
	}

	var written uint64
	for written < targetSz {
		cmd, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: reading command: %w", ErrInvalidDelta, err)
		}

		switch {
		case isCopyFromBase(cmd):
			var off, sz uint64
			for _, b := range offsetBits {
				if cmd&b.mask != 0 {
					v, err := r.ReadByte()
					if err != nil {
						return fmt.Errorf("%w: reading offset: %w", ErrInvalidDelta, err)
					}
					off |= uint64(v) << b.shift
				}
			}
			for _, b := range sizeBits {
				if cmd&b.mask != 0 {
					v, err := r.ReadByte()
					if err != nil {
						return fmt.Errorf("%w: reading size: %w", ErrInvalidDelta, err)
					}
					sz |= uint64(v) << b.shift
				}
			}
			if sz == 0 {
				sz = maxCopySize
			}

			if off+sz < off || off+sz > srcSz {
				return fmt.Errorf("%w: copy command out of source range", ErrInvalidDelta)
			}
			if written+sz > targetSz {
				return fmt.Errorf("%w: copy command exceeds target size", ErrInvalidDelta)
			}
			if _, err := w.Write(base[off : off+sz]); err != nil {
				return err
			}
			written += sz

		case isCopyFromDelta(cmd):
			sz := uint64(cmd)
			if written+sz > targetSz {
				return fmt.Errorf("%w: insert command exceeds target size", ErrInvalidDelta)
			}
			if _, err := io.CopyN(w, r, int64(sz)); err != nil {
				return fmt.Errorf("%w: reading insert payload: %w", ErrInvalidDelta, err)
			}
			written += sz

		default:
			return fmt.Errorf("%w: zero command byte", ErrInvalidDelta)
		}
	}

	return nil
}
