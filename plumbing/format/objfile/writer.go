package objfile

import (
	"compress/zlib"
	"fmt"
	"io"

	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
)

// Writer frames an object's header and payload into a zlib stream,
// computing the object's id as bytes are written (spec.md §3.1, invariant
// 1: id is the hash of the header plus payload).
type Writer struct {
	w      io.Writer
	zw     *zlib.Writer
	hasher hash.Hasher

	size    int64
	written int64

	headerWritten bool
}

// NewWriter returns a Writer that frames output onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the "<type> <size>\0" header and must be called
// exactly once, before any call to Write.
func (w *Writer) WriteHeader(t plumbing.ObjectType, size int64) error {
	if !t.Valid() {
		return ErrInvalidType
	}
	if size < 0 {
		return ErrNegativeSize
	}

	w.size = size
	w.hasher = hash.NewHasher(t.String(), size)
	w.zw = zlib.NewWriter(w.w)

	header := fmt.Sprintf("%s %d", t.String(), size)
	if _, err := io.WriteString(w.zw, header); err != nil {
		return err
	}
	if _, err := w.zw.Write([]byte{0}); err != nil {
		return err
	}

	w.headerWritten = true
	return nil
}

// Write appends payload bytes, returning ErrOverflow if the total would
// exceed the size declared in WriteHeader.
func (w *Writer) Write(p []byte) (int, error) {
	if !w.headerWritten {
		return 0, fmt.Errorf("objfile: Write before WriteHeader")
	}

	overflow := w.written+int64(len(p)) > w.size
	if overflow {
		allowed := w.size - w.written
		if allowed < 0 {
			allowed = 0
		}
		p = p[:allowed]
	}

	n, err := w.zw.Write(p)
	w.written += int64(n)
	w.hasher.Write(p[:n])

	if err != nil {
		return n, err
	}
	if overflow {
		return n, ErrOverflow
	}
	return n, nil
}

// Hash returns the id of the object written so far. Valid any time after
// WriteHeader.
func (w *Writer) Hash() plumbing.Hash { return w.hasher.Sum() }

// Close flushes and closes the underlying zlib stream.
func (w *Writer) Close() error {
	if w.zw == nil {
		return nil
	}
	return w.zw.Close()
}
