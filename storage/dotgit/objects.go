package dotgit

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/yamaritta/ngit/hash"
	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/format/objfile"
)

const (
	objectsDir     = "objects"
	packDir        = "pack"
	infoDir        = "info"
	alternatesFile = "alternates"

	packExt = ".pack"
	idxExt  = ".idx"
)

// ObjectStore resolves the on-disk layout of loose objects, packs, and
// alternates (spec.md §4.5/§4.6/§6: "objects/xx/yyyy…",
// "objects/pack/*.pack"+".idx", "objects/info/alternates"). It is rooted
// either at a .git directory (the normal case, objectsRoot=false, every
// path below is prefixed with "objects/") or directly at another
// repository's objects directory (an entry resolved from
// objects/info/alternates, objectsRoot=true, since that is what the
// alternates file names — Git never points an alternate at a ".git"
// directory, only at its objects directory). Kept separate from
// RefDatabase because the two halves of a .git directory are read and
// written independently, but both are "the dotgit layout", hence one
// package.
type ObjectStore struct {
	fs          billy.Filesystem
	objectsRoot bool
}

// NewObjectStore returns an ObjectStore rooted at fs (the .git directory).
func NewObjectStore(fs billy.Filesystem) *ObjectStore {
	return &ObjectStore{fs: fs}
}

// root returns name's path relative to this store's filesystem, adding the
// "objects/" prefix unless this store is itself rooted at an objects
// directory (an alternate).
func (s *ObjectStore) root(name ...string) string {
	var p string
	if s.objectsRoot {
		p = s.fs.Join(name...)
	} else {
		p = s.fs.Join(append([]string{objectsDir}, name...)...)
	}
	if p == "" {
		return "."
	}
	return p
}

// looseObjectPath returns the "xx/yyyy…" path for h, the standard 2/38
// split (spec.md §6), relative to this store's objects directory.
func looseObjectPath(h hash.Hash) (string, string) {
	s := h.String()
	return s[:2], s[2:]
}

// Object opens the loose object file for h, returning an os.IsNotExist
// error if it isn't present.
func (s *ObjectStore) Object(h hash.Hash) (billy.File, error) {
	dir, rest := looseObjectPath(h)
	return s.fs.Open(s.root(dir, rest))
}

// HasObject reports whether a loose object file exists for h.
func (s *ObjectStore) HasObject(h hash.Hash) bool {
	dir, rest := looseObjectPath(h)
	_, err := s.fs.Stat(s.root(dir, rest))
	return err == nil
}

// IterLooseObjects lists every loose object id under the objects
// directory, skipping the "pack" and "info" subdirectories (neither is a
// valid 2-hex-digit bucket).
func (s *ObjectStore) IterLooseObjects() ([]hash.Hash, error) {
	topEntries, err := s.fs.ReadDir(s.root())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []hash.Hash
	for _, top := range topEntries {
		name := top.Name()
		if !top.IsDir() || len(name) != 2 {
			continue
		}
		subEntries, err := s.fs.ReadDir(s.root(name))
		if err != nil {
			return nil, err
		}
		for _, sub := range subEntries {
			if len(sub.Name()) != hash.HexSize-2 {
				continue
			}
			h, err := hash.FromHex(name + sub.Name())
			if err != nil {
				continue
			}
			out = append(out, h)
		}
	}
	return out, nil
}

// ObjectWriter is a loose object writer that frames via objfile.Writer,
// buffers to a temp file under the objects directory, and renames to the
// final content-addressed path only once the write completes successfully
// (spec.md §4.5: "serialize to a temporary file under objects/, rename to
// final path only after successful zlib+hash; refuse overwrite"),
// following the teacher's dotgit/writers.go ObjectWriter shape adapted onto
// go-billy rather than os directly.
type ObjectWriter struct {
	store *ObjectStore
	tmp   billy.File
	ow    *objfile.Writer
	done  bool
}

// NewObject returns a writer for a new loose object.
func (s *ObjectStore) NewObject() (*ObjectWriter, error) {
	if err := s.fs.MkdirAll(s.root(), 0o777); err != nil {
		return nil, err
	}
	tmp, err := s.fs.TempFile(s.root(), "tmp_obj_")
	if err != nil {
		return nil, err
	}
	return &ObjectWriter{store: s, tmp: tmp, ow: objfile.NewWriter(tmp)}, nil
}

// WriteHeader declares the object's type and size; must precede Write.
func (w *ObjectWriter) WriteHeader(t plumbing.ObjectType, size int64) error {
	return w.ow.WriteHeader(t, size)
}

// Write appends payload bytes.
func (w *ObjectWriter) Write(p []byte) (int, error) { return w.ow.Write(p) }

// Close finalizes the object: flushes the zlib stream, then renames the
// temp file to its content-addressed path. If an object with the same hash
// already exists, the temp file is discarded instead of overwriting it
// (spec.md §4.5, "duplicate is safe").
func (w *ObjectWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	fs := w.store.fs
	if err := w.ow.Close(); err != nil {
		_ = w.tmp.Close()
		_ = fs.Remove(w.tmp.Name())
		return err
	}
	if err := w.tmp.Close(); err != nil {
		_ = fs.Remove(w.tmp.Name())
		return err
	}

	dir, rest := looseObjectPath(w.ow.Hash())
	final := w.store.root(dir, rest)

	if _, err := fs.Stat(final); err == nil {
		return fs.Remove(w.tmp.Name())
	}

	if err := fs.MkdirAll(w.store.root(dir), 0o777); err != nil {
		return err
	}
	return fs.Rename(w.tmp.Name(), final)
}

// Hash returns the id of the object written so far.
func (w *ObjectWriter) Hash() hash.Hash { return w.ow.Hash() }

// Packs lists the ids of every pack under the objects/pack directory,
// derived from the "pack-<id>.pack" filenames.
func (s *ObjectStore) Packs() ([]hash.Hash, error) {
	entries, err := s.fs.ReadDir(s.root(packDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []hash.Hash
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pack-") || !strings.HasSuffix(name, packExt) {
			continue
		}
		hex := strings.TrimSuffix(strings.TrimPrefix(name, "pack-"), packExt)
		h, err := hash.FromHex(hex)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// PackDirModTime returns the modification time of the objects/pack
// directory, used by the object database to detect that the pack set may
// have changed since it was last scanned (spec.md §4.6). A missing
// directory is reported as the zero time with no error, so a repository
// with no packs yet doesn't fail the check.
func (s *ObjectStore) PackDirModTime() (time.Time, error) {
	fi, err := s.fs.Stat(s.root(packDir))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Pack opens the ".pack" file for id.
func (s *ObjectStore) Pack(id hash.Hash) (billy.File, error) {
	return s.fs.Open(s.packPath(id, packExt))
}

// PackIdx opens the ".idx" file for id.
func (s *ObjectStore) PackIdx(id hash.Hash) (billy.File, error) {
	return s.fs.Open(s.packPath(id, idxExt))
}

func (s *ObjectStore) packPath(id hash.Hash, ext string) string {
	return s.root(packDir, fmt.Sprintf("pack-%s%s", id.String(), ext))
}

// Alternates reads objects/info/alternates (one path per line, matching
// Git's format: each line names another repository's *objects* directory
// directly, resolved relative to this store's own objects directory) and
// returns an ObjectStore rooted at each one. Missing or unresolvable
// entries are skipped rather than failing the whole read, since a stale
// alternate shouldn't prevent access to everything else (spec.md §4.6).
func (s *ObjectStore) Alternates() ([]*ObjectStore, error) {
	f, err := s.fs.Open(s.root(infoDir, alternatesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []*ObjectStore
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		root, err := s.fs.Chroot(s.root(line))
		if err != nil {
			continue
		}
		out = append(out, &ObjectStore{fs: root, objectsRoot: true})
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
