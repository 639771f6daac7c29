// Package dotgit implements the reference store (C7) and its backing lock
// file protocol (C8) over a .git directory, in the layout documented in
// spec.md §4.7/§4.8. Grounded on the teacher's
// storage/filesystem/internal/dotgit package (path layout constants,
// packed-refs parsing, setRef's check-then-replace algorithm) and
// core/reference.go (reused here via package plumbing).
package dotgit

import (
	"errors"

	"github.com/go-git/go-billy/v5"

	"github.com/yamaritta/ngit/plumbing"
)

const (
	packedRefsPath = "packed-refs"
	refsPath       = "refs"
	logsPath       = "logs"
)

var (
	// ErrReferenceHasChanged is returned by a guarded write when the
	// stored value no longer matches the caller's expected old value.
	ErrReferenceHasChanged = errors.New("dotgit: reference has changed")
	// ErrSymRefCycle is returned when resolving HEAD or any symbolic
	// reference exceeds the 5-hop bound (spec.md §4.7).
	ErrSymRefCycle = errors.New("dotgit: symbolic reference cycle or too many hops")
	// ErrPackedRefsBadFormat is returned when a packed-refs line doesn't
	// parse.
	ErrPackedRefsBadFormat = errors.New("dotgit: malformed packed-refs line")
)

// maxSymbolicHops bounds symbolic reference resolution (spec.md §4.7).
const maxSymbolicHops = 5

// RefDatabase is a reference store rooted at a .git directory, implementing
// storer.ReferenceStorer plus the RefUpdate state machine from spec.md
// §4.7.
type RefDatabase struct {
	fs billy.Filesystem
}

// NewRefDatabase returns a RefDatabase rooted at fs (the .git directory
// itself, not its parent worktree).
func NewRefDatabase(fs billy.Filesystem) *RefDatabase {
	return &RefDatabase{fs: fs}
}

// Init writes an initial HEAD pointing at refs/heads/master, as a freshly
// created repository would have (storer.Initializer).
func (d *RefDatabase) Init() error {
	head := plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/master")
	return d.SetReference(head)
}
