package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	stdhash "hash"
	"io"
	"strconv"
	"time"

	"github.com/pjbgf/sha1cd"

	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/filemode"
)

// ErrMalformedSignature is returned by Decode when the file does not open
// with "DIRC".
var ErrMalformedSignature = errors.New("index: malformed signature")

// ErrInvalidChecksum is returned by Decode when the trailing SHA-1 does not
// match the preceding bytes.
var ErrInvalidChecksum = errors.New("index: invalid checksum")

const (
	entryHeaderLength = 62 // fixed fields + 20-byte id + 2-byte flags
	entryExtended     = 0x4000
	nameMask          = 0x0fff
	intentToAddMask   = 1 << 13
	skipWorktreeMask  = 1 << 14
)

// Decoder reads a DIRC file from a stream, verifying its trailing checksum
// as it goes.
type Decoder struct {
	br        *bufio.Reader
	r         io.Reader // br, tee'd into the running checksum
	sum       stdhash.Hash
	lastEntry *Entry
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	h := sha1cd.New()
	br := bufio.NewReader(r)
	return &Decoder{br: br, r: io.TeeReader(br, h), sum: h}
}

// Decode reads one complete index into idx.
func (d *Decoder) Decode(idx *Index) error {
	version, err := d.readHeader()
	if err != nil {
		return err
	}
	idx.Version = version

	var count uint32
	if err := binary.Read(d.r, binary.BigEndian, &count); err != nil {
		return err
	}

	idx.entries = nil
	for i := uint32(0); i < count; i++ {
		e, err := d.readEntry(idx)
		if err != nil {
			return fmt.Errorf("index: entry %d: %w", i, err)
		}
		idx.put(e)
		d.lastEntry = e
	}

	if err := d.readExtensions(idx); err != nil {
		return err
	}

	return d.readChecksum()
}

func (d *Decoder) readHeader() (uint32, error) {
	var sig [4]byte
	if _, err := io.ReadFull(d.r, sig[:]); err != nil {
		return 0, err
	}
	if sig != indexSignature {
		return 0, ErrMalformedSignature
	}

	var version uint32
	if err := binary.Read(d.r, binary.BigEndian, &version); err != nil {
		return 0, err
	}
	if version < 2 || version > 4 {
		return 0, ErrUnsupportedVersion
	}
	return version, nil
}

func (d *Decoder) readEntry(idx *Index) (*Entry, error) {
	e := &Entry{}

	var sec, nsec, msec, mnsec uint32
	for _, p := range []*uint32{&sec, &nsec, &msec, &mnsec, &e.Dev, &e.Inode} {
		if err := binary.Read(d.r, binary.BigEndian, p); err != nil {
			return nil, err
		}
	}

	var rawMode uint32
	if err := binary.Read(d.r, binary.BigEndian, &rawMode); err != nil {
		return nil, err
	}
	e.Mode = filemode.FileMode(rawMode)

	for _, p := range []*uint32{&e.UID, &e.GID, &e.Size} {
		if err := binary.Read(d.r, binary.BigEndian, p); err != nil {
			return nil, err
		}
	}

	var rawHash [hash.Size]byte
	if _, err := io.ReadFull(d.r, rawHash[:]); err != nil {
		return nil, err
	}
	e.Hash = rawHash

	var flags uint16
	if err := binary.Read(d.r, binary.BigEndian, &flags); err != nil {
		return nil, err
	}

	read := entryHeaderLength

	if sec != 0 || nsec != 0 {
		e.CreatedAt = time.Unix(int64(sec), int64(nsec))
	}
	if msec != 0 || mnsec != 0 {
		e.ModifiedAt = time.Unix(int64(msec), int64(mnsec))
	}
	e.Stage = Stage((flags >> 12) & 0x3)

	if flags&entryExtended != 0 {
		var extended uint16
		if err := binary.Read(d.r, binary.BigEndian, &extended); err != nil {
			return nil, err
		}
		read += 2
		e.IntentToAdd = extended&intentToAddMask != 0
		e.SkipWorktree = extended&skipWorktreeMask != 0
	}

	if err := d.readEntryName(idx, e, flags); err != nil {
		return nil, err
	}

	return e, d.padEntry(idx, e, read)
}

func (d *Decoder) readEntryName(idx *Index, e *Entry, flags uint16) error {
	switch idx.Version {
	case 2, 3:
		n := flags & nameMask
		name := make([]byte, n)
		if _, err := io.ReadFull(d.r, name); err != nil {
			return err
		}
		e.Name = string(name)
		return nil
	case 4:
		return d.readEntryNameV4(e)
	default:
		return ErrUnsupportedVersion
	}
}

// readEntryNameV4 decodes the version 4 path-prefix compression scheme: a
// varint count of bytes to strip off the end of the previous entry's name,
// followed by the literal suffix to append.
func (d *Decoder) readEntryNameV4(e *Entry) error {
	strip, err := readVarint(d.r)
	if err != nil {
		return err
	}

	var base string
	if d.lastEntry != nil {
		if strip > int64(len(d.lastEntry.Name)) {
			return fmt.Errorf("%w: name strip count %d exceeds previous entry name length", ErrMalformedSignature, strip)
		}
		base = d.lastEntry.Name[:len(d.lastEntry.Name)-int(strip)]
	}

	suffix, err := readCString(d.r)
	if err != nil {
		return err
	}
	e.Name = base + suffix
	return nil
}

// padEntry discards the zero bytes that pad a v2/v3 entry out to an 8-byte
// boundary (v4 entries are not padded).
func (d *Decoder) padEntry(idx *Index, e *Entry, read int) error {
	if idx.Version == 4 {
		return nil
	}
	size := read + len(e.Name)
	pad := 8 - size%8
	_, err := io.CopyN(io.Discard, d.r, int64(pad))
	return err
}

// readExtensions consumes every trailing 4-byte-signature block before the
// final checksum. The cache-tree ("TREE") extension is decoded; any other
// extension whose signature's first byte is uppercase is skipped per git's
// own forward-compatibility rule ("optional, can be ignored"); a lowercase
// leading byte marks a mandatory extension this package doesn't implement.
func (d *Decoder) readExtensions(idx *Index) error {
	// An extension needs at least a 4-byte signature + 4-byte length, and
	// whatever follows (extension or not) still ends in the 20-byte
	// trailing checksum. If fewer than that many bytes remain, what's left
	// can only be the checksum itself — stop without trying to parse it as
	// an extension header.
	const minTrailer = 4 + 4 + hash.Size

	for {
		peek, err := d.br.Peek(minTrailer)
		if len(peek) < minTrailer {
			return nil
		}
		if err != nil {
			return err
		}

		var sig [4]byte
		if _, err := io.ReadFull(d.r, sig[:]); err != nil {
			return err
		}

		var size uint32
		if err := binary.Read(d.r, binary.BigEndian, &size); err != nil {
			return err
		}

		body := io.LimitReader(d.r, int64(size))

		switch string(sig[:]) {
		case "TREE":
			t, err := decodeTreeExtension(body)
			if err != nil {
				return err
			}
			idx.Cache = t
		default:
			if sig[0] < 'A' || sig[0] > 'Z' {
				return fmt.Errorf("index: unknown mandatory extension %q", sig[:])
			}
			if _, err := io.Copy(io.Discard, body); err != nil {
				return err
			}
		}
	}
}

func decodeTreeExtension(r io.Reader) (*Tree, error) {
	t := &Tree{}
	br := bufio.NewReader(r)
	for {
		path, err := readCString(br)
		if err != nil {
			if err == io.EOF {
				return t, nil
			}
			return nil, err
		}

		countText, err := readUntil(br, ' ')
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(countText)
		if err != nil {
			return nil, err
		}

		treesText, err := readUntil(br, '\n')
		if err != nil {
			return nil, err
		}
		trees, err := strconv.Atoi(treesText)
		if err != nil {
			return nil, err
		}

		e := TreeEntry{Path: path, Entries: count, Trees: trees}
		if count >= 0 {
			var h [hash.Size]byte
			if _, err := io.ReadFull(br, h[:]); err != nil {
				return nil, err
			}
			e.Hash = h
		}
		t.Entries = append(t.Entries, e)
	}
}

func (d *Decoder) readChecksum() error {
	expected := d.sum.Sum(nil)

	var got [hash.Size]byte
	if _, err := io.ReadFull(d.br, got[:]); err != nil {
		return err
	}

	var exp plumbing.Hash
	copy(exp[:], expected)
	if got != exp {
		return ErrInvalidChecksum
	}
	return nil
}

// readByte reads a single byte from r without requiring r to implement
// io.ByteReader — used here because r is sometimes a tee'd stream that must
// not be wrapped in another buffering layer (that would desync it from the
// raw peek-ahead reader readExtensions also reads from).
func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readVarint(r io.Reader) (int64, error) {
	var n int64
	for {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}
		n = n<<7 | int64(b&0x7f)
		if b&0x80 == 0 {
			return n, nil
		}
		n++
	}
}

func readCString(r io.Reader) (string, error) {
	return readUntil(r, 0)
}

func readUntil(r io.Reader, delim byte) (string, error) {
	var buf []byte
	for {
		b, err := readByte(r)
		if err != nil {
			return "", err
		}
		if b == delim {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}
