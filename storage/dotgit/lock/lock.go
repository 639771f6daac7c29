// Package lock implements Git's ".lock" file protocol (spec.md §3.1/§4.8):
// a writer claims exclusive rights to update a path by creating
// "<path>.lock" with O_CREATE|O_EXCL, writes the new content, fsyncs, then
// atomically renames the lock file over the target.
package lock

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
)

var (
	// ErrCannotLock is returned by Acquire when the lock file already
	// exists (another writer holds it) or cannot otherwise be created.
	ErrCannotLock = errors.New("lock: cannot acquire lock")
	// ErrCannotCommit is returned by Commit when the lock was already
	// released or committed, or when the fsync, close or rename fails.
	ErrCannotCommit = errors.New("lock: cannot commit")
)

// File represents a held lock on path, backed by path+".lock" until
// Commit or Rollback is called.
type File struct {
	fs       billy.Filesystem
	path     string
	lockPath string
	f        billy.File
}

// Acquire creates path+".lock" exclusively, failing with ErrCannotLock if
// it already exists.
func Acquire(fs billy.Filesystem, path string) (*File, error) {
	lockPath := path + ".lock"

	f, err := fs.OpenFile(lockPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCannotLock, lockPath, err)
	}

	return &File{fs: fs, path: path, lockPath: lockPath, f: f}, nil
}

// Write appends to the lock file's pending content.
func (l *File) Write(p []byte) (int, error) {
	return l.f.Write(p)
}

// Commit flushes, fsyncs (where the filesystem supports it), and renames
// the lock file over the target path, releasing the lock.
func (l *File) Commit() error {
	if l.f == nil {
		return ErrCannotCommit
	}

	if s, ok := l.f.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("%w: fsync: %w", ErrCannotCommit, err)
		}
	}

	if err := l.f.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrCannotCommit, err)
	}
	l.f = nil

	if err := l.fs.Rename(l.lockPath, l.path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrCannotCommit, err)
	}
	return nil
}

// Rollback closes and removes the lock file without touching path.
func (l *File) Rollback() error {
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	return l.fs.Remove(l.lockPath)
}
