// Package index decodes and encodes the git DirCache (.git/index): the
// sorted table of (path, mode, stat, id, stage) entries recording what is
// currently staged, plus its optional cache-tree extension (spec.md §4.10).
//
// This package never touches a worktree: it has no stat-the-filesystem,
// add-a-path-from-disk, or checkout-a-path operation. It only reads and
// writes the on-disk DIRC format bit-exactly, the same boundary the rest of
// this module draws around working-tree operations.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/filemode"
)

// ErrUnsupportedVersion is returned when the index file version is outside
// [2, 4].
var ErrUnsupportedVersion = errors.New("index: unsupported version")

// ErrEntryNotFound is returned by Index.Entry when no entry matches.
var ErrEntryNotFound = errors.New("index: entry not found")

var indexSignature = [4]byte{'D', 'I', 'R', 'C'}

// Stage distinguishes the base/ours/theirs copies of a path during an
// unresolved merge conflict (spec.md §4.10's per-entry stage field).
type Stage int

const (
	Merged       Stage = 0
	AncestorMode Stage = 1
	OurMode      Stage = 2
	TheirMode    Stage = 3
)

// Entry is a single recorded path at a single stage. An unmerged path has
// one Entry per non-zero stage rather than one Entry covering all three.
type Entry struct {
	Hash         plumbing.Hash
	Name         string
	CreatedAt    time.Time
	ModifiedAt   time.Time
	Dev, Inode   uint32
	Mode         filemode.FileMode
	UID, GID     uint32
	Size         uint32
	Stage        Stage
	SkipWorktree bool
	IntentToAdd  bool
}

func (e Entry) String() string {
	return fmt.Sprintf("%06o %s %d\t%s", uint32(e.Mode), e.Hash, e.Stage, e.Name)
}

func entryKey(name string, stage Stage) string {
	return name + "\x00" + string(rune('0'+stage))
}

// Tree is the cache-tree extension: precomputed tree ids for spans of the
// index, so writing a tree object from a clean index can skip rehashing
// subtrees nothing in that span has touched.
type Tree struct {
	Entries []TreeEntry
}

// TreeEntry is one subtree's span within Tree. Entries == -1 marks an
// invalidated span (recompute on next write).
type TreeEntry struct {
	Path    string
	Entries int
	Trees   int
	Hash    plumbing.Hash
}

// Index is a fully decoded DIRC file. Entries are kept in a treemap keyed
// by path (and, for conflicted paths, by stage) so lookups and the
// in-sorted-order iteration Encode needs are both O(log n) rather than a
// hand-rolled sorted slice with insertion-sort inserts.
type Index struct {
	Version uint32
	Cache   *Tree

	entries *treemap.Map // entryKey -> *Entry
}

// NewIndex returns an empty Index at the given format version (2, 3, or 4).
func NewIndex(version uint32) *Index {
	return &Index{Version: version, entries: treemap.NewWithStringComparator()}
}

// Add records a new entry for path at stage Merged, returning it for the
// caller to fill in.
func (idx *Index) Add(path string) *Entry {
	e := &Entry{Name: path, Stage: Merged}
	idx.put(e)
	return e
}

func (idx *Index) put(e *Entry) {
	if idx.entries == nil {
		idx.entries = treemap.NewWithStringComparator()
	}
	idx.entries.Put(entryKey(e.Name, e.Stage), e)
}

// Entry returns the Merged-stage entry for path, if any.
func (idx *Index) Entry(path string) (*Entry, error) {
	return idx.EntryAtStage(path, Merged)
}

// EntryAtStage returns the entry for path at the given stage, if any.
func (idx *Index) EntryAtStage(path string, stage Stage) (*Entry, error) {
	if idx.entries == nil {
		return nil, ErrEntryNotFound
	}
	v, ok := idx.entries.Get(entryKey(path, stage))
	if !ok {
		return nil, ErrEntryNotFound
	}
	return v.(*Entry), nil
}

// Remove deletes the Merged-stage entry for path, returning it.
func (idx *Index) Remove(path string) (*Entry, error) {
	e, err := idx.Entry(path)
	if err != nil {
		return nil, err
	}
	idx.entries.Remove(entryKey(path, Merged))
	return e, nil
}

// Entries returns every entry in on-disk order: sorted by path, then by
// stage within a path.
func (idx *Index) Entries() []*Entry {
	if idx.entries == nil {
		return nil
	}
	values := idx.entries.Values()
	out := make([]*Entry, len(values))
	for i, v := range values {
		out[i] = v.(*Entry)
	}
	return out
}

// Len returns the number of entries (all stages combined).
func (idx *Index) Len() int {
	if idx.entries == nil {
		return 0
	}
	return idx.entries.Size()
}

// Glob returns every entry whose path matches pattern, using filepath.Match
// syntax, sorted by path.
func (idx *Index) Glob(pattern string) ([]*Entry, error) {
	var matches []*Entry
	for _, e := range idx.Entries() {
		ok, err := filepath.Match(pattern, e.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return matches, nil
}

func (idx *Index) String() string {
	var buf bytes.Buffer
	for _, e := range idx.Entries() {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}
