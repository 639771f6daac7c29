//go:build darwin || linux

package cache

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// ErrNoFileDescriptor is returned by NewMmapSource when f exposes no real
// file descriptor to map (an in-memory or network-backed billy.File,
// typically), letting the caller fall back to a heap-copy WindowSource.
var ErrNoFileDescriptor = errors.New("cache: file has no accessible descriptor for mmap")

// MmapSource is a WindowSource backed by a read-only, shared mapping of a
// file's bytes, avoiding a read syscall per window fetch (spec.md §4.2/§9:
// mmap is a negotiated 64-bit-platform capability, not a hard requirement).
type MmapSource struct {
	data []byte
}

// billyFileDescriptor and goFileDescriptor are the two shapes a file handle
// can expose its underlying descriptor through: go-billy's own accessor
// (which can report "no descriptor" via its bool), or the plain os.File
// method billy.File implementations are often backed by.
type billyFileDescriptor interface {
	Fd() (uintptr, bool)
}

type goFileDescriptor interface {
	Fd() uintptr
}

// NewMmapSource maps the first size bytes of f into memory read-only. f
// must resolve to a real file descriptor; ErrNoFileDescriptor is returned
// otherwise.
func NewMmapSource(f interface{}, size int64) (*MmapSource, error) {
	fd, err := fileDescriptor(f)
	if err != nil {
		return nil, err
	}

	data, err := unix.Mmap(int(fd), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("cache: mmap failed: %w", err)
	}
	return &MmapSource{data: data}, nil
}

func fileDescriptor(f interface{}) (uintptr, error) {
	if ffd, ok := f.(billyFileDescriptor); ok {
		if v, ok := ffd.Fd(); ok {
			return v, nil
		}
	}
	if ffd, ok := f.(goFileDescriptor); ok {
		return ffd.Fd(), nil
	}
	return 0, ErrNoFileDescriptor
}

// ReadAt implements WindowSource by slicing directly into the mapped
// region; the kernel, not this process, owns the page cache behind it.
func (s *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.data)) {
		return 0, fmt.Errorf("cache: mmap read offset %d out of range", off)
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size implements WindowSource.
func (s *MmapSource) Size() int64 { return int64(len(s.data)) }

// Close unmaps the region. The file descriptor itself belongs to the
// caller that opened it and is closed separately.
func (s *MmapSource) Close() error {
	return unix.Munmap(s.data)
}
