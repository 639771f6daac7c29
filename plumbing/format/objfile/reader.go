package objfile

import (
	"bufio"
	"compress/zlib"
	"fmt"
	"io"
	"strconv"

	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
)

// Reader inflates a loose object stream and exposes its header and
// payload, computing the object's id as the payload is consumed. Hash
// reports it; the Reader itself does not compare it with any expected id.
type Reader struct {
	zr     io.ReadCloser
	hasher hash.Hasher

	typ  plumbing.ObjectType
	size int64
	read int64

	headerRead bool
}

// NewReader opens r as a loose object stream. It fails immediately if the
// zlib framing itself can't be opened; the header is parsed lazily on the
// first call to Header so a caller that only wants existence-checking
// doesn't pay for a full inflate.
func NewReader(r io.Reader) (*Reader, error) {
	zr, err := zlib.NewReader(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("objfile: opening zlib stream: %w", err)
	}
	return &Reader{zr: zr}, nil
}

// Header reads and parses the "<type> <size>\0" header. Must be called
// before Read.
func (r *Reader) Header() (plumbing.ObjectType, int64, error) {
	if r.headerRead {
		return r.typ, r.size, nil
	}

	br := bufio.NewReader(r.zr)

	typBytes, err := br.ReadString(' ')
	if err != nil {
		return 0, 0, fmt.Errorf("%w: reading type", ErrMalformedHeader)
	}
	typName := typBytes[:len(typBytes)-1]

	sizeBytes, err := br.ReadString(0)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: reading size", ErrMalformedHeader)
	}
	sizeStr := sizeBytes[:len(sizeBytes)-1]

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	typ := plumbing.ParseObjectType(typName)
	if !typ.Valid() {
		return 0, 0, fmt.Errorf("%w: unknown type %q", ErrMalformedHeader, typName)
	}

	r.typ = typ
	r.size = size
	r.hasher = hash.NewHasher(typName, size)

	// Any bytes bufio read ahead past the header belong to the payload;
	// chain them back in front of the remaining zlib stream.
	r.zr = &prefixedReadCloser{prefix: drainBuffered(br), r: r.zr}

	r.headerRead = true
	return r.typ, r.size, nil
}

// Read reads payload bytes and feeds them into the running hash.
func (r *Reader) Read(p []byte) (int, error) {
	if !r.headerRead {
		return 0, fmt.Errorf("objfile: Read before Header")
	}
	n, err := r.zr.Read(p)
	r.read += int64(n)
	r.hasher.Write(p[:n])
	return n, err
}

// Hash returns the id of the object read so far, valid any time after
// Header.
func (r *Reader) Hash() plumbing.Hash { return r.hasher.Sum() }

// Close closes the underlying zlib stream.
func (r *Reader) Close() error { return r.zr.Close() }

func drainBuffered(br *bufio.Reader) []byte {
	n := br.Buffered()
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	_, _ = io.ReadFull(br, buf)
	return buf
}

// prefixedReadCloser serves buf first, then falls through to r; used to
// hand back bytes a bufio.Reader over-read past the header boundary.
type prefixedReadCloser struct {
	prefix []byte
	r      io.ReadCloser
}

func (p *prefixedReadCloser) Read(b []byte) (int, error) {
	if len(p.prefix) > 0 {
		n := copy(b, p.prefix)
		p.prefix = p.prefix[n:]
		return n, nil
	}
	return p.r.Read(b)
}

func (p *prefixedReadCloser) Close() error { return p.r.Close() }
