package object

import (
	"fmt"
	"io"
	"strings"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/filemode"
	"github.com/yamaritta/ngit/plumbing/storer"
)

// TreeEntry is one "mode SP name \0 <20-byte id>" record of a tree object
// (spec.md §4.10).
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// Tree is the decoded form of a tree object: an ordered list of entries,
// each a path segment pointing at a blob or a subtree.
type Tree struct {
	Hash    plumbing.Hash
	Entries []TreeEntry

	s storer.EncodedObjectStorer
	m map[string]*TreeEntry
}

func (t *Tree) ID() plumbing.Hash         { return t.Hash }
func (t *Tree) Type() plumbing.ObjectType { return plumbing.TreeObject }

func (t *Tree) buildMap() {
	if t.m != nil {
		return
	}
	t.m = make(map[string]*TreeEntry, len(t.Entries))
	for i := range t.Entries {
		t.m[t.Entries[i].Name] = &t.Entries[i]
	}
}

// entry returns the direct child entry named name, nil if absent.
func (t *Tree) entry(name string) *TreeEntry {
	t.buildMap()
	return t.m[name]
}

// Subtree decodes the subtree reached by entry e, which must be Dir-moded.
func (t *Tree) Subtree(e TreeEntry) (*Tree, error) {
	if e.Mode != filemode.Dir {
		return nil, plumbing.ErrIncorrectObjectType
	}
	return GetTree(t.s, e.Hash)
}

// FindEntry walks path ("/"-separated) down through nested trees and
// returns the entry at the end of it.
func (t *Tree) FindEntry(path string) (*TreeEntry, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, plumbing.ErrObjectNotFound
	}

	segments := strings.Split(path, "/")
	cur := t
	for i, name := range segments {
		e := cur.entry(name)
		if e == nil {
			return nil, plumbing.ErrObjectNotFound
		}
		if i == len(segments)-1 {
			return e, nil
		}
		next, err := cur.Subtree(*e)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return nil, plumbing.ErrObjectNotFound
}

// DecodeTree parses eo's payload into Entries, forward-scanning the
// "mode SP name \0 <20-byte id>" records (spec.md §4.10).
func DecodeTree(s storer.EncodedObjectStorer, eo plumbing.EncodedObject) (*Tree, error) {
	if eo.Type() != plumbing.TreeObject {
		return nil, plumbing.ErrIncorrectObjectType
	}
	raw, err := readAll(eo)
	if err != nil {
		return nil, err
	}

	entries, err := decodeTreeEntries(raw)
	if err != nil {
		return nil, err
	}
	return &Tree{Hash: eo.Hash(), Entries: entries, s: s}, nil
}

func decodeTreeEntries(raw []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	pos := 0
	for pos < len(raw) {
		e, consumed, err := parseTreeEntryAt(raw, pos)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		pos += consumed
	}
	return entries, nil
}

// parseTreeEntryAt decodes one entry starting at raw[pos:], returning it
// and the number of bytes consumed. Forward parsing has no ambiguity:
// names cannot contain NUL, so the first 0x00 byte after the mode/name
// split is always the name terminator, whatever bytes follow in the
// 20-byte id.
func parseTreeEntryAt(raw []byte, pos int) (TreeEntry, int, error) {
	sp := indexByteFrom(raw, pos, ' ')
	if sp < 0 {
		return TreeEntry{}, 0, fmt.Errorf("%w: tree entry missing mode separator", plumbing.ErrCorruptObject)
	}
	mode, err := filemode.New(string(raw[pos:sp]))
	if err != nil {
		return TreeEntry{}, 0, fmt.Errorf("%w: %s", plumbing.ErrCorruptObject, err)
	}

	nul := indexByteFrom(raw, sp+1, 0)
	if nul < 0 {
		return TreeEntry{}, 0, fmt.Errorf("%w: tree entry missing name terminator", plumbing.ErrCorruptObject)
	}
	name := string(raw[sp+1 : nul])

	idStart := nul + 1
	idEnd := idStart + plumbing.HashSize
	if idEnd > len(raw) {
		return TreeEntry{}, 0, fmt.Errorf("%w: truncated tree entry id", plumbing.ErrCorruptObject)
	}

	var h plumbing.Hash
	copy(h[:], raw[idStart:idEnd])

	return TreeEntry{Name: name, Mode: mode, Hash: h}, idEnd - pos, nil
}

func indexByteFrom(b []byte, from int, c byte) int {
	i := indexByte(b[from:], c)
	if i < 0 {
		return -1
	}
	return from + i
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// TreeBackwardIter walks a tree's raw entry bytes from the last entry to
// the first (spec.md §4.10, Open Questions). Each step locates the previous
// entry's boundary by scanning backward for a NUL, verifying each candidate
// against the expected mode-field shape and a forward round-trip before
// accepting it — see Next for the full two-step verification.
type TreeBackwardIter struct {
	raw []byte
	end int
}

// BackwardIter returns an iterator yielding t's entries from last to first.
func (t *Tree) BackwardIter(raw []byte) *TreeBackwardIter {
	return &TreeBackwardIter{raw: raw, end: len(raw)}
}

// RawEntries re-encodes the forward-decoded t.Entries back to bytes,
// letting a caller exercise BackwardIter against the same buffer Entries
// was built from without retaining the original payload separately.
func (t *Tree) RawEntries() []byte {
	var buf []byte
	for _, e := range t.Entries {
		buf = append(buf, []byte(e.Mode.String())...)
		buf = append(buf, ' ')
		buf = append(buf, []byte(e.Name)...)
		buf = append(buf, 0)
		buf = append(buf, e.Hash[:]...)
	}
	return buf
}

// Next returns the previous entry in buffer order, io.EOF once the start of
// the buffer is reached.
//
// The candidate NUL normally sits at exactly `end - plumbing.HashSize - 1`,
// since the id is always exactly plumbing.HashSize bytes. But the id is
// arbitrary bytes and may itself contain a 0x00, so a candidate at that
// position can be a false positive if the real mode/name/id split lies
// further back (this only happens on already-malformed/adversarial trees;
// a well-formed id containing 0x00 at that exact offset is indistinguishable
// from a corrupt boundary, which is why every candidate is verified rather
// than trusted outright). Each candidate is accepted only if the bytes
// immediately preceding it form a valid entry head (one or more octal
// digits followed by a space, with no 0x00 between that space and the
// candidate); if not,
// scanning continues further back for the next 0x00.
func (it *TreeBackwardIter) Next() (TreeEntry, error) {
	if it.end <= 0 {
		return TreeEntry{}, io.EOF
	}

	maxNul := it.end - plumbing.HashSize - 1
	if maxNul < 0 {
		return TreeEntry{}, fmt.Errorf("%w: tree entry boundary mismatch at %d", plumbing.ErrCorruptObject, it.end)
	}

	for nulPos := maxNul; nulPos >= 0; nulPos-- {
		if it.raw[nulPos] != 0 {
			continue
		}

		sep := -1
		for i := nulPos - 1; i >= 0; i-- {
			if it.raw[i] == 0 {
				break
			}
			if it.raw[i] == ' ' {
				sep = i
				break
			}
		}
		if sep < 0 {
			continue
		}

		modeStart := sep
		for modeStart > 0 && isOctalDigit(it.raw[modeStart-1]) {
			modeStart--
		}
		if modeStart == sep {
			continue
		}

		// Second sanity check: re-parse forward from the candidate start
		// and confirm it reproduces exactly the already-known end
		// boundary. This is what rejects a false-positive 0x00 found
		// inside an id, or a coincidental space inside a name.
		entry, consumed, err := parseTreeEntryAt(it.raw, modeStart)
		if err != nil {
			continue
		}
		if modeStart+consumed != it.end {
			continue
		}

		it.end = modeStart
		return entry, nil
	}

	return TreeEntry{}, fmt.Errorf("%w: no valid tree entry boundary found scanning backward from %d", plumbing.ErrCorruptObject, it.end)
}

func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }
