package packfile

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/yamaritta/ngit/cache"
	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/format/idxfile"
)

// windowBufSize bounds the read-ahead bufio.Reader wrapped around a
// WindowCache-backed stream; it only affects how many extra bytes of the
// next object's header get pulled into memory and discarded, never
// correctness, since zlib stops at its own stream terminator.
const windowBufSize = 512

// offsetReader sequentially reads src through cache, fetching windows on
// demand and releasing each one before moving to the next (spec.md §4.2:
// "acquire-check-release, then I/O, then reinsert"; here "I/O" is the
// caller's own sequential consumption, windows are fetched one at a time
// as the read position advances past the current one).
type offsetReader struct {
	cache *cache.WindowCache
	src   cache.WindowSource
	name  string
	pos   int64
	cur   *cache.Window
}

func (r *offsetReader) inWindow() bool {
	return r.cur != nil && r.pos >= r.cur.Offset && r.pos < r.cur.Offset+int64(len(r.cur.Data))
}

func (r *offsetReader) Read(p []byte) (int, error) {
	if r.pos >= r.src.Size() {
		return 0, io.EOF
	}
	if !r.inWindow() {
		if r.cur != nil {
			r.cur.Release()
		}
		w, err := r.cache.GetWindow(r.name, r.src, r.pos)
		if err != nil {
			return 0, err
		}
		r.cur = w
	}
	n := r.cur.ReadAt(p, r.pos)
	if n == 0 {
		return 0, io.EOF
	}
	r.pos += int64(n)
	return n, nil
}

func (r *offsetReader) Close() error {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	return nil
}

// fileSource adapts an io.ReaderAt with a known size to cache.WindowSource.
type fileSource struct {
	ReaderAt interface {
		ReadAt(p []byte, off int64) (int, error)
	}
	SizeOf int64
}

func (s fileSource) ReadAt(p []byte, off int64) (int, error) { return s.ReaderAt.ReadAt(p, off) }
func (s fileSource) Size() int64                              { return s.SizeOf }

// Loader is the public contract PackFile exposes for one object: its final
// type and size, whether it exceeds the streaming threshold, and the two
// ways of consuming its payload (spec.md §4.4).
type Loader interface {
	Type() plumbing.ObjectType
	Size() int64
	IsLarge() bool
	// Bytes materializes the whole payload. Fails with ErrLargeObject when
	// IsLarge() is true.
	Bytes() ([]byte, error)
	// Reader always succeeds, streaming the payload regardless of size.
	Reader() (io.ReadCloser, error)
}

// loader is the in-memory case: content already holds the fully resolved
// payload, used whenever Size() is at or under the pack's stream threshold.
// For the large case, content is nil and pf/offset identify where Reader
// re-walks the chain from (see PackFile.Get, PackFile.streamAt).
type loader struct {
	pf     *PackFile
	offset int64

	typ     plumbing.ObjectType
	content []byte
	size    int64
	large   bool
}

func (l *loader) Type() plumbing.ObjectType { return l.typ }
func (l *loader) Size() int64               { return l.size }
func (l *loader) IsLarge() bool             { return l.large }

func (l *loader) Bytes() ([]byte, error) {
	if l.large {
		return nil, plumbing.ErrLargeObject
	}
	return l.content, nil
}

func (l *loader) Reader() (io.ReadCloser, error) {
	if !l.large {
		return io.NopCloser(bytes.NewReader(l.content)), nil
	}
	return l.pf.streamAt(l.offset)
}

// PackFile is the on-demand reader over a pack file described in spec.md
// §4.4: Has/Open/Get dispatch through a companion PackIndex for id->offset
// lookups, draw their inflated bytes through a shared MappedWindowCache
// (C2), and cache materialized delta bases in a DeltaBaseCache (C4/C9
// wiring point), rather than decoding the whole pack up front the way
// Decode does (Decode remains useful for bulk ingestion/verification).
type PackFile struct {
	name            string
	src             fileSource
	idx             idxfile.Index
	windows         *cache.WindowCache
	bases           *cache.DeltaBaseCache
	external        ExternalBaseLookup
	streamThreshold int64
}

// NewPackFile returns a PackFile over src (an open, seekable pack file of
// size srcSize), named name for window-cache keying purposes, indexed by
// idx, sharing windows and bases with the given caches. A streamThreshold
// of zero or less falls back to the package default (streamThreshold
// const, spec.md §4.4).
func NewPackFile(
	name string,
	src interface {
		ReadAt(p []byte, off int64) (int, error)
	},
	srcSize int64,
	idx idxfile.Index,
	windows *cache.WindowCache,
	bases *cache.DeltaBaseCache,
	external ExternalBaseLookup,
	streamThreshold int64,
) *PackFile {
	if streamThreshold <= 0 {
		streamThreshold = defaultStreamThreshold()
	}
	return &PackFile{
		name:            name,
		src:             fileSource{ReaderAt: src, SizeOf: srcSize},
		idx:             idx,
		windows:         windows,
		bases:           bases,
		external:        external,
		streamThreshold: streamThreshold,
	}
}

// defaultStreamThreshold exposes the package-level streamThreshold const
// to NewPackFile, whose streamThreshold parameter shadows it.
func defaultStreamThreshold() int64 { return streamThreshold }

// Has reports whether h is present in this pack's index.
func (p *PackFile) Has(h plumbing.Hash) bool { return p.idx.Contains(h) }

// Open resolves h through the index and loads it.
func (p *PackFile) Open(h plumbing.Hash) (Loader, error) {
	off, err := p.idx.FindOffset(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFoundInPack, h)
	}
	return p.Get(int64(off))
}

// ErrObjectNotFoundInPack is returned by Open when the index has no entry
// for the requested id.
var ErrObjectNotFoundInPack = errors.New("packfile: object not found in pack index")

// Get loads the object at the given pack offset, resolving its delta chain
// if necessary (spec.md §4.4: bounded depth, cycle rejection, optional
// large-object streaming). The large/small decision is made from the
// object's header and, for a delta, its top delta entry's declared target
// size alone (typeAt/sizeAt) — neither inflates or applies the full delta,
// so an object over the stream threshold is never materialized here; its
// bytes are only produced later, and incrementally, from Loader.Reader.
func (p *PackFile) Get(offset int64) (Loader, error) {
	typ, err := p.typeAt(offset, 1, map[int64]bool{})
	if err != nil {
		return nil, err
	}
	size, err := p.sizeAt(offset)
	if err != nil {
		return nil, err
	}

	if size > p.streamThreshold {
		return &loader{pf: p, offset: offset, typ: typ, size: size, large: true}, nil
	}

	_, content, err := p.resolve(offset, 1, map[int64]bool{})
	if err != nil {
		return nil, err
	}
	return &loader{typ: typ, content: content, size: int64(len(content)), large: false}, nil
}

// typeAt returns the ultimate content type of the object at offset, by
// following OFS_DELTA/REF_DELTA headers down to a literal base. Object
// headers are stored uncompressed, so this never inflates a zlib stream.
func (p *PackFile) typeAt(offset int64, depth int, visited map[int64]bool) (plumbing.ObjectType, error) {
	if depth > maxDeltaDepth {
		return 0, ErrMaxDeltaDepth
	}
	if visited[offset] {
		return 0, ErrDeltaCycle
	}
	visited[offset] = true

	r := p.newReader(offset)
	typ, _, err := readObjectHeaderByte(r)
	if err != nil {
		return 0, fmt.Errorf("%w: reading header at %d: %w", ErrMalformedPackfile, offset, err)
	}

	switch {
	case typ.Valid():
		return typ, nil

	case typ == plumbing.OFSDeltaObject:
		n, err := readOffsetDelta(r)
		if err != nil {
			return 0, fmt.Errorf("%w: reading ofs-delta base: %w", ErrMalformedPackfile, err)
		}
		return p.typeAt(offset-n, depth+1, visited)

	case typ == plumbing.REFDeltaObject:
		h, err := readRefDeltaBase(r)
		if err != nil {
			return 0, err
		}
		if off, err := p.idx.FindOffset(h); err == nil {
			return p.typeAt(int64(off), depth+1, visited)
		}
		if p.external != nil {
			typ, _, err := p.external(h)
			if err == nil {
				return typ, nil
			}
		}
		return 0, fmt.Errorf("%w: %s", ErrReferenceDeltaNotFound, h)

	default:
		return 0, fmt.Errorf("%w: unknown object type %v at %d", ErrMalformedPackfile, typ, offset)
	}
}

// sizeAt returns the final inflated size of the object at offset, without
// materializing its content. A literal entry's header size field already is
// that size. A delta entry's header size field is only the size of its own
// instruction stream; the final size instead comes from the target-size
// LEB128 prefix at the start of the delta stream itself, read by inflating
// only those first few bytes — resolving the rest of the delta, or any of
// its bases, is never necessary just to learn the size.
func (p *PackFile) sizeAt(offset int64) (int64, error) {
	r := p.newReader(offset)
	typ, hdrSize, err := readObjectHeaderByte(r)
	if err != nil {
		return 0, fmt.Errorf("%w: reading header at %d: %w", ErrMalformedPackfile, offset, err)
	}

	switch {
	case typ.Valid():
		return hdrSize, nil

	case typ == plumbing.OFSDeltaObject:
		if _, err := readOffsetDelta(r); err != nil {
			return 0, fmt.Errorf("%w: reading ofs-delta base: %w", ErrMalformedPackfile, err)
		}
		return peekDeltaTargetSize(r)

	case typ == plumbing.REFDeltaObject:
		if _, err := readRefDeltaBase(r); err != nil {
			return 0, err
		}
		return peekDeltaTargetSize(r)

	default:
		return 0, fmt.Errorf("%w: unknown object type %v at %d", ErrMalformedPackfile, typ, offset)
	}
}

// peekDeltaTargetSize opens r's zlib stream and reads only its leading
// source-size/target-size LEB128 pair, leaving the rest of the delta
// (copy/insert commands, however long) untouched.
func peekDeltaTargetSize(r io.Reader) (int64, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: opening delta zlib stream: %w", ErrMalformedPackfile, err)
	}
	defer zr.Close()

	br := bufio.NewReader(zr)
	if _, err := decodeLEB128(br); err != nil {
		return 0, fmt.Errorf("%w: reading source size: %w", ErrInvalidDelta, err)
	}
	targetSz, err := decodeLEB128(br)
	if err != nil {
		return 0, fmt.Errorf("%w: reading target size: %w", ErrInvalidDelta, err)
	}
	return int64(targetSz), nil
}

// readRefDeltaBase reads a REF_DELTA entry's 20-byte base id.
func readRefDeltaBase(r io.Reader) (plumbing.Hash, error) {
	var raw [hash.Size]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return plumbing.Hash{}, fmt.Errorf("%w: reading ref-delta base: %w", ErrMalformedPackfile, err)
	}
	h, err := hash.FromBytes(raw[:])
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("%w: reading ref-delta base: %w", ErrMalformedPackfile, err)
	}
	return h, nil
}

// streamAt re-walks the chain at offset to produce a Loader.Reader for a
// large object (spec.md §4.4: "streaming for a delta re-walks bases on each
// open — memory-bounded, time-traded"). A literal entry streams straight
// off its zlib reader. A delta entry still fully materializes its bases
// (copy commands need random access into them), but writes the top-level
// target incrementally through applyDeltaTo instead of ever holding the
// whole reconstructed payload in one slice.
func (p *PackFile) streamAt(offset int64) (io.ReadCloser, error) {
	r := p.newReader(offset)
	typ, _, err := readObjectHeaderByte(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading header at %d: %w", ErrMalformedPackfile, offset, err)
	}

	switch {
	case typ.Valid():
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: opening zlib stream: %w", ErrMalformedPackfile, err)
		}
		return zr, nil

	case typ == plumbing.OFSDeltaObject:
		n, err := readOffsetDelta(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading ofs-delta base: %w", ErrMalformedPackfile, err)
		}
		_, baseContent, err := p.resolve(offset-n, 2, map[int64]bool{offset: true})
		if err != nil {
			return nil, err
		}
		return p.streamDelta(r, baseContent)

	case typ == plumbing.REFDeltaObject:
		h, err := readRefDeltaBase(r)
		if err != nil {
			return nil, err
		}
		_, baseContent, err := p.resolveByHash(h, 2, map[int64]bool{offset: true})
		if err != nil {
			return nil, err
		}
		return p.streamDelta(r, baseContent)

	default:
		return nil, fmt.Errorf("%w: unknown object type %v at %d", ErrMalformedPackfile, typ, offset)
	}
}

// streamDelta opens r's zlib stream (the delta instructions) and pipes
// applyDeltaTo's output to the returned reader as it is produced, rather
// than building the target in a buffer first.
func (p *PackFile) streamDelta(r io.Reader, base []byte) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening delta zlib stream: %w", ErrMalformedPackfile, err)
	}

	pr, pw := io.Pipe()
	go func() {
		err := applyDeltaTo(pw, base, zr)
		zr.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (p *PackFile) newReader(offset int64) *bufio.Reader {
	return bufio.NewReaderSize(&offsetReader{cache: p.windows, src: p.src, name: p.name, pos: offset}, windowBufSize)
}

// resolve reconstructs the object at offset, recursing into OFS_DELTA and
// REF_DELTA bases up to maxDeltaDepth, rejecting a base offset already on
// the current path as a cycle (spec.md §3.2 invariant 5, §4.4).
func (p *PackFile) resolve(offset int64, depth int, visited map[int64]bool) (plumbing.ObjectType, []byte, error) {
	if depth > maxDeltaDepth {
		return 0, nil, ErrMaxDeltaDepth
	}
	if visited[offset] {
		return 0, nil, ErrDeltaCycle
	}
	visited[offset] = true

	if p.bases != nil {
		if c, ok := p.bases.Get(cache.DeltaBaseKey{Pack: p.name, Offset: offset}); ok && len(c) > 0 {
			// The first byte is the reconstructed object's type, prefixed
			// on Put so a cache hit doesn't lose it (DeltaBaseCache itself
			// only knows about raw bytes).
			return plumbing.ObjectType(c[0]), c[1:], nil
		}
	}

	r := p.newReader(offset)

	typ, _, err := readObjectHeaderByte(r)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading header at %d: %w", ErrMalformedPackfile, offset, err)
	}

	switch {
	case typ.Valid():
		content, err := inflate(r)
		if err != nil {
			return 0, nil, err
		}
		p.cacheBase(offset, typ, content)
		return typ, content, nil

	case typ == plumbing.OFSDeltaObject:
		n, err := readOffsetDelta(r)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: reading ofs-delta base: %w", ErrMalformedPackfile, err)
		}
		baseOffset := offset - n
		baseTyp, baseContent, err := p.resolve(baseOffset, depth+1, visited)
		if err != nil {
			return 0, nil, err
		}
		delta, err := inflate(r)
		if err != nil {
			return 0, nil, err
		}
		content, err := applyDelta(baseContent, delta)
		if err != nil {
			return 0, nil, err
		}
		p.cacheBase(offset, baseTyp, content)
		return baseTyp, content, nil

	case typ == plumbing.REFDeltaObject:
		var raw [hash.Size]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return 0, nil, fmt.Errorf("%w: reading ref-delta base: %w", ErrMalformedPackfile, err)
		}
		h, err := hash.FromBytes(raw[:])
		if err != nil {
			return 0, nil, fmt.Errorf("%w: reading ref-delta base: %w", ErrMalformedPackfile, err)
		}
		baseTyp, baseContent, err := p.resolveByHash(h, depth+1, visited)
		if err != nil {
			return 0, nil, err
		}
		delta, err := inflate(r)
		if err != nil {
			return 0, nil, err
		}
		content, err := applyDelta(baseContent, delta)
		if err != nil {
			return 0, nil, err
		}
		p.cacheBase(offset, baseTyp, content)
		return baseTyp, content, nil

	default:
		return 0, nil, fmt.Errorf("%w: unknown object type %v at %d", ErrMalformedPackfile, typ, offset)
	}
}

func (p *PackFile) resolveByHash(h plumbing.Hash, depth int, visited map[int64]bool) (plumbing.ObjectType, []byte, error) {
	if off, err := p.idx.FindOffset(h); err == nil {
		return p.resolve(int64(off), depth, visited)
	}
	if p.external != nil {
		typ, content, err := p.external(h)
		if err == nil {
			return typ, content, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: %s", ErrReferenceDeltaNotFound, h)
}

// cacheBase stores content under offset, prefixed with typ so a later
// cache hit can report the base's type without re-decoding its ancestry.
func (p *PackFile) cacheBase(offset int64, typ plumbing.ObjectType, content []byte) {
	if p.bases == nil {
		return
	}
	tagged := make([]byte, 1+len(content))
	tagged[0] = byte(typ)
	copy(tagged[1:], content)
	p.bases.Put(cache.DeltaBaseKey{Pack: p.name, Offset: offset}, tagged)
}

func inflate(r io.Reader) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening zlib stream: %w", ErrMalformedPackfile, err)
	}
	defer zr.Close()
	content, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: inflating: %w", ErrMalformedPackfile, err)
	}
	return content, nil
}
