package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/yamaritta/ngit/cache"
	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/storer"
	"github.com/yamaritta/ngit/revision"
	"github.com/yamaritta/ngit/storage/dotgit"
)

// ErrRepositoryNotFound is returned by Discover when no ".git" directory or
// file is found while ascending from the starting directory to the
// filesystem root (spec.md §6, "Environment / discovery").
var ErrRepositoryNotFound = errors.New("storage: .git not found in this or any parent directory")

// errInvalidGitFile is returned when a plain-text ".git" file's content
// doesn't match the "gitdir: <path>\n" shape git itself writes for
// worktrees and submodules.
var errInvalidGitFile = errors.New("storage: malformed .git file")

// Repository is the façade gluing the object database (C6), the reference
// database (C7/C8), and a caller-supplied revision resolver together
// (spec.md §6): "open a .git directory, look things up, write refs under
// lock" — no worktree, no remotes, no wire protocol.
type Repository struct {
	fs      billy.Filesystem
	objects *ObjectDatabase
	refs    *dotgit.RefDatabase
}

// Open returns a Repository rooted at fs, the .git directory itself (not
// its parent worktree, if any — this package never touches a worktree).
func Open(fs billy.Filesystem, opts cache.Options) (*Repository, error) {
	objects, err := NewObjectDatabase(fs, opts)
	if err != nil {
		return nil, err
	}
	return &Repository{
		fs:      fs,
		objects: objects,
		refs:    dotgit.NewRefDatabase(fs),
	}, nil
}

// Init creates a new repository's initial state (HEAD -> refs/heads/master)
// in an already-created, empty .git directory.
func Init(fs billy.Filesystem, opts cache.Options) (*Repository, error) {
	repo, err := Open(fs, opts)
	if err != nil {
		return nil, err
	}
	if err := repo.refs.Init(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Discover ascends from startDir looking for a ".git" entry, exactly as
// spec.md §6 describes: a directory named ".git" (an ordinary repository),
// or a plain-text ".git" file whose content is "gitdir: <path>" (a worktree
// or submodule's gitdir pointer, resolved relative to the directory
// containing the file when not absolute). The first match wins; Discover
// never searches past the filesystem root. Grounded on the teacher's
// PlainOpen (repository.go: `fs.Stat(".git")` then `fs.Dir(".git")` for the
// plain-directory case), generalized from "check once" to "ascend until
// found or exhausted", since this module's Non-goals exclude a worktree
// but not the directory-discovery convenience every real caller needs.
func Discover(startDir string, opts cache.Options) (*Repository, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, ".git")
		info, err := os.Stat(candidate)
		switch {
		case err == nil:
			if info.IsDir() {
				return Open(osfs.New(candidate), opts)
			}
			gitdir, err := readGitFile(candidate)
			if err != nil {
				return nil, err
			}
			if !filepath.IsAbs(gitdir) {
				gitdir = filepath.Join(dir, gitdir)
			}
			return Open(osfs.New(gitdir), opts)
		case !os.IsNotExist(err):
			return nil, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrRepositoryNotFound
		}
		dir = parent
	}
}

// readGitFile parses a plain-text ".git" file's single "gitdir: <path>"
// line.
func readGitFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	const prefix = "gitdir: "
	line := strings.TrimRight(string(b), "\r\n")
	if !strings.HasPrefix(line, prefix) {
		return "", errInvalidGitFile
	}
	return strings.TrimPrefix(line, prefix), nil
}

// ObjectDatabase returns the repository's object store (C6).
func (r *Repository) ObjectDatabase() *ObjectDatabase { return r.objects }

// RefDatabase returns the repository's reference store (C7/C8).
func (r *Repository) RefDatabase() *dotgit.RefDatabase { return r.refs }

// Storer returns r as a storer.Storer, the combined interface the revision
// resolver and other consumers are written against.
func (r *Repository) Storer() storer.Storer { return repoStorer{r} }

// Resolver returns a revision.Resolver wired to r's object and reference
// databases, including reflog-backed `@{N}`/`@{date}` lookups (spec.md
// §4.9, §6's "resolve(expr)" operation).
func (r *Repository) Resolver() *revision.Resolver {
	res := revision.NewResolver(r.Storer())
	res.ReflogReader = r.refs.ReadReflog
	return res
}

// Resolve parses and evaluates expr against r, the §6 façade operation.
func (r *Repository) Resolve(expr string) (plumbing.Hash, error) {
	return r.Resolver().Resolve(expr)
}

// repoStorer adapts a Repository's two halves to the single
// storer.Storer interface, since Repository itself exposes them as two
// named accessors rather than embedding (a caller wanting just the ref
// half, e.g., shouldn't have to carry the object half along).
type repoStorer struct{ r *Repository }

func (s repoStorer) NewEncodedObject() plumbing.EncodedObject { return s.r.objects.NewEncodedObject() }
func (s repoStorer) SetEncodedObject(o plumbing.EncodedObject) (plumbing.Hash, error) {
	return s.r.objects.SetEncodedObject(o)
}
func (s repoStorer) EncodedObject(t plumbing.ObjectType, h plumbing.Hash) (plumbing.EncodedObject, error) {
	return s.r.objects.EncodedObject(t, h)
}
func (s repoStorer) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	return s.r.objects.IterEncodedObjects(t)
}
func (s repoStorer) HasEncodedObject(h plumbing.Hash) error { return s.r.objects.HasEncodedObject(h) }
func (s repoStorer) EncodedObjectSize(h plumbing.Hash) (int64, error) {
	return s.r.objects.EncodedObjectSize(h)
}

// ResolveUnique lets the revision resolver's abbreviation handling reach
// through the façade to the underlying ObjectDatabase, which is the only
// half of storer.Storer that knows how to resolve a hex prefix.
func (s repoStorer) ResolveUnique(abbrev string) (plumbing.Hash, error) {
	return s.r.objects.ResolveUnique(abbrev)
}
func (s repoStorer) SetReference(ref *plumbing.Reference) error { return s.r.refs.SetReference(ref) }
func (s repoStorer) CheckAndSetReference(new, old *plumbing.Reference) error {
	return s.r.refs.CheckAndSetReference(new, old)
}
func (s repoStorer) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	return s.r.refs.Reference(name)
}
func (s repoStorer) IterReferences() (storer.ReferenceIter, error) { return s.r.refs.IterReferences() }
func (s repoStorer) RemoveReference(name plumbing.ReferenceName) error {
	return s.r.refs.RemoveReference(name)
}
func (s repoStorer) CountLooseRefs() (int, error) { return s.r.refs.CountLooseRefs() }
func (s repoStorer) PackRefs() error              { return s.r.refs.PackRefs() }
