package packfile

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	stdhash "hash"
	"hash/crc32"
	"io"
	"sync"

	ngithash "github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
)

// Section identifies which part of the packfile the last Scan() produced.
type Section int

const (
	HeaderSection Section = iota
	ObjectSection
	FooterSection
)

// Data is the payload produced by a single Scan() call.
type Data struct {
	Section Section

	header   Header
	object   ObjectHeader
	content  []byte
	checksum plumbing.Hash
}

// Header returns the decoded pack header; valid when Section is
// HeaderSection.
func (d Data) Header() Header { return d.header }

// Object returns the current object's header; valid when Section is
// ObjectSection.
func (d Data) Object() ObjectHeader { return d.object }

// Content returns the object's inflated bytes (the raw payload for
// non-delta objects, the encoded delta instructions for delta objects);
// valid when Section is ObjectSection.
func (d Data) Content() []byte { return d.content }

// Checksum returns the pack's trailing SHA-1; valid when Section is
// FooterSection.
func (d Data) Checksum() plumbing.Hash { return d.checksum }

// Scanner provides sequential access to a packfile's structure, one
// section (header, each object, footer) per call to Scan, mirroring the
// teacher's state-machine scanner (spec.md §3.1/§4.4).
type Scanner struct {
	r     byteReader
	crc   stdhash.Hash32
	sum   stdhash.Hash // running SHA-1 over every byte read, for the trailer check
	count int64        // total bytes consumed so far, i.e. the next object's offset

	version Version
	objects uint32
	objIdx  int

	nextFn stateFn
	data   Data
	err    error

	m sync.Mutex
}

// countingWriter increments a Scanner's byte counter as the underlying
// TeeReader forwards bytes actually consumed by the caller.
type countingWriter struct{ s *Scanner }

func (w countingWriter) Write(p []byte) (int, error) {
	w.s.count += int64(len(p))
	return len(p), nil
}

// byteReader adds ReadByte to the tee without buffering ahead of it.
type byteReader struct{ io.Reader }

func (b byteReader) ReadByte() (byte, error) {
	var c [1]byte
	_, err := io.ReadFull(b.Reader, c[:])
	return c[0], err
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	s := &Scanner{
		crc:    crc32.NewIEEE(),
		sum:    sha1.New(),
		objIdx: -1,
	}
	// Unbuffered, one byte per ReadByte: crc and the running offset must be
	// scoped exactly to each object's compressed byte range, so the
	// underlying reader must never look ahead past what zlib actually
	// consumes for the current object.
	s.r = byteReader{io.TeeReader(r, io.MultiWriter(s.crc, s.sum, countingWriter{s}))}
	s.nextFn = scanSignature
	return s
}

type stateFn func(*Scanner) (stateFn, error)

// Scan advances the scanner by one section. It returns false once the
// footer has been read or an error has occurred; callers should check
// Err() to distinguish the two.
func (s *Scanner) Scan() bool {
	s.m.Lock()
	defer s.m.Unlock()

	if s.err != nil || s.nextFn == nil {
		return false
	}

	for state := s.nextFn; state != nil; {
		next, err := state(s)
		if err != nil {
			s.err = err
			return false
		}
		if next == nil {
			break
		}
		state = next
	}
	return true
}

// Data returns the result of the last successful Scan call.
func (s *Scanner) Data() Data { return s.data }

// Err returns the first error encountered, if any.
func (s *Scanner) Err() error { return s.err }

func scanSignature(s *Scanner) (stateFn, error) {
	var sig [4]byte
	if _, err := io.ReadFull(s.r, sig[:]); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyPackfile
		}
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if !bytes.Equal(sig[:], signature) {
		return nil, ErrBadSignature
	}
	return scanVersion, nil
}

func scanVersion(s *Scanner) (stateFn, error) {
	var b [4]byte
	if _, err := io.ReadFull(s.r, b[:]); err != nil {
		return nil, fmt.Errorf("%w: reading version: %w", ErrMalformedPackfile, err)
	}
	v := Version(binary.BigEndian.Uint32(b[:]))
	if !v.Supported() {
		return nil, ErrUnsupportedVersion
	}
	s.version = v
	return scanObjectCount, nil
}

func scanObjectCount(s *Scanner) (stateFn, error) {
	var b [4]byte
	if _, err := io.ReadFull(s.r, b[:]); err != nil {
		return nil, fmt.Errorf("%w: reading object count: %w", ErrMalformedPackfile, err)
	}
	s.objects = binary.BigEndian.Uint32(b[:])

	s.data = Data{Section: HeaderSection, header: Header{Version: s.version, ObjectsQty: s.objects}}

	if s.objects == 0 {
		s.nextFn = scanFooter
	} else {
		s.nextFn = scanObject
	}
	return nil, nil
}

func scanObject(s *Scanner) (stateFn, error) {
	if s.objIdx+1 >= int(s.objects) {
		return scanFooter, nil
	}
	s.objIdx++

	s.crc.Reset()
	offset := s.count

	typ, size, err := readObjectHeaderByte(s.r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading object header %d: %w", ErrMalformedPackfile, s.objIdx, err)
	}

	oh := ObjectHeader{Offset: offset, Type: typ, Size: size}

	switch typ {
	case plumbing.OFSDeltaObject:
		n, err := readOffsetDelta(s.r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading ofs-delta base: %w", ErrMalformedPackfile, err)
		}
		oh.OffsetReference = offset - n
	case plumbing.REFDeltaObject:
		var h [ngithash.Size]byte
		if _, err := io.ReadFull(s.r, h[:]); err != nil {
			return nil, fmt.Errorf("%w: reading ref-delta base: %w", ErrMalformedPackfile, err)
		}
		oh.HashReference = h
	}

	oh.ContentOffset = s.count

	zr, err := zlib.NewReader(s.r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening zlib stream: %w", ErrMalformedPackfile, err)
	}
	content, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: inflating object %d: %w", ErrMalformedPackfile, s.objIdx, err)
	}

	oh.Crc32 = s.crc.Sum32()
	s.data = Data{Section: ObjectSection, object: oh, content: content}
	s.nextFn = scanObject
	return nil, nil
}

func scanFooter(s *Scanner) (stateFn, error) {
	computed := s.sum.Sum(nil)

	var trailer [checksumSize]byte
	if _, err := io.ReadFull(s.r, trailer[:]); err != nil {
		return nil, fmt.Errorf("%w: reading checksum: %w", ErrMalformedPackfile, err)
	}

	var want, got plumbing.Hash
	copy(want[:], trailer[:])
	copy(got[:], computed)
	if want != got {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedPackfile)
	}

	s.data = Data{Section: FooterSection, checksum: want}
	s.nextFn = nil
	return nil, nil
}
