package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	stdhash "hash"
	"io"

	"github.com/pjbgf/sha1cd"
)

// EncodeVersionSupported is the only version Encode writes. Reading accepts
// 2, 3, and 4 (decoder.go); writing always produces the simplest, most
// widely compatible layout rather than also implementing v4's path-prefix
// compression scheme on the write side.
const EncodeVersionSupported uint32 = 2

// Encoder writes an Index to an output stream in on-disk order (sorted by
// path, then stage), followed by the cache-tree extension (if set) and a
// trailing SHA-1 checksum over everything written.
type Encoder struct {
	w   io.Writer
	sum stdhash.Hash
	mw  io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	h := sha1cd.New()
	return &Encoder{w: w, sum: h, mw: io.MultiWriter(w, h)}
}

// Encode writes idx to the encoder's stream.
func (e *Encoder) Encode(idx *Index) error {
	if idx.Version > EncodeVersionSupported {
		return fmt.Errorf("index: Encode only supports version %d, not %d", EncodeVersionSupported, idx.Version)
	}
	version := idx.Version
	if version == 0 {
		version = EncodeVersionSupported
	}

	entries := idx.Entries()

	if _, err := e.mw.Write(indexSignature[:]); err != nil {
		return err
	}
	if err := binary.Write(e.mw, binary.BigEndian, version); err != nil {
		return err
	}
	if err := binary.Write(e.mw, binary.BigEndian, uint32(len(entries))); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := e.encodeEntry(entry); err != nil {
			return err
		}
	}

	if idx.Cache != nil {
		if err := e.encodeTree(idx.Cache); err != nil {
			return err
		}
	}

	return e.writeChecksum()
}

func (e *Encoder) encodeEntry(entry *Entry) error {
	var sec, nsec, msec, mnsec uint32
	if !entry.CreatedAt.IsZero() {
		sec = uint32(entry.CreatedAt.Unix())
		nsec = uint32(entry.CreatedAt.Nanosecond())
	}
	if !entry.ModifiedAt.IsZero() {
		msec = uint32(entry.ModifiedAt.Unix())
		mnsec = uint32(entry.ModifiedAt.Nanosecond())
	}

	fields := []interface{}{
		sec, nsec, msec, mnsec,
		entry.Dev, entry.Inode,
		uint32(entry.Mode),
		entry.UID, entry.GID, entry.Size,
	}
	for _, f := range fields {
		if err := binary.Write(e.mw, binary.BigEndian, f); err != nil {
			return err
		}
	}

	if _, err := e.mw.Write(entry.Hash.Bytes()); err != nil {
		return err
	}

	flags := uint16(entry.Stage&0x3) << 12
	nameLen := len(entry.Name)
	if nameLen < nameMask {
		flags |= uint16(nameLen)
	} else {
		flags |= nameMask
	}

	read := entryHeaderLength
	if entry.IntentToAdd || entry.SkipWorktree {
		flags |= entryExtended
		if err := binary.Write(e.mw, binary.BigEndian, flags); err != nil {
			return err
		}
		var extended uint16
		if entry.IntentToAdd {
			extended |= intentToAddMask
		}
		if entry.SkipWorktree {
			extended |= skipWorktreeMask
		}
		if err := binary.Write(e.mw, binary.BigEndian, extended); err != nil {
			return err
		}
		read += 2
	} else {
		if err := binary.Write(e.mw, binary.BigEndian, flags); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(e.mw, entry.Name); err != nil {
		return err
	}

	size := read + nameLen
	pad := 8 - size%8
	_, err := e.mw.Write(make([]byte, pad))
	return err
}

func (e *Encoder) encodeTree(t *Tree) error {
	var body []byte
	for _, te := range t.Entries {
		body = append(body, te.Path...)
		body = append(body, 0)
		body = append(body, fmt.Sprintf("%d %d\n", te.Entries, te.Trees)...)
		if te.Entries >= 0 {
			body = append(body, te.Hash.Bytes()...)
		}
	}
	return e.encodeRawExtension("TREE", body)
}

func (e *Encoder) encodeRawExtension(signature string, data []byte) error {
	if len(signature) != 4 {
		return errors.New("index: extension signature must be 4 bytes")
	}
	if _, err := io.WriteString(e.mw, signature); err != nil {
		return err
	}
	if err := binary.Write(e.mw, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := e.mw.Write(data)
	return err
}

func (e *Encoder) writeChecksum() error {
	_, err := e.w.Write(e.sum.Sum(nil))
	return err
}
