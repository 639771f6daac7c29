package storage

import (
	"os"

	"github.com/yamaritta/ngit/plumbing/format/index"
	"github.com/yamaritta/ngit/storage/dotgit/lock"
)

const dirCachePath = "index"

// DirCache reads the repository's index file (spec.md §4.10). A repository
// with no index yet (a fresh Init, say) gets an empty version-2 Index
// rather than an error — the same "nothing staged yet" reading git itself
// gives an absent index file.
func (r *Repository) DirCache() (*index.Index, error) {
	f, err := r.fs.Open(dirCachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return index.NewIndex(index.EncodeVersionSupported), nil
		}
		return nil, err
	}
	defer f.Close()

	idx := &index.Index{}
	if err := index.NewDecoder(f).Decode(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// SetDirCache rewrites the repository's index file, via the same
// acquire-write-rename lock protocol RefDatabase uses for refs (spec.md
// §4.7/§4.10): a reader never observes a partially written index.
func (r *Repository) SetDirCache(idx *index.Index) error {
	l, err := lock.Acquire(r.fs, dirCachePath)
	if err != nil {
		return err
	}

	if err := index.NewEncoder(l).Encode(idx); err != nil {
		_ = l.Rollback()
		return err
	}

	return l.Commit()
}
