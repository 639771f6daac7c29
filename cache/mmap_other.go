//go:build !darwin && !linux

package cache

import "errors"

// errMmapUnsupported is what NewMmapSource returns on platforms with no
// unix.Mmap binding wired up here; callers treat it the same as
// ErrNoFileDescriptor and fall back to a heap-copy WindowSource.
var errMmapUnsupported = errors.New("cache: mmap is only supported on linux or darwin")

// MmapSource is the unsupported-platform stand-in; it always fails to
// construct, so code that doesn't branch on GOOS can still reference the
// type (spec.md §9: mmap is a negotiated capability, not a hard
// requirement).
type MmapSource struct{}

// NewMmapSource always fails on this platform.
func NewMmapSource(f interface{}, size int64) (*MmapSource, error) {
	return nil, errMmapUnsupported
}

func (s *MmapSource) ReadAt(p []byte, off int64) (int, error) { return 0, errMmapUnsupported }
func (s *MmapSource) Size() int64                              { return 0 }
func (s *MmapSource) Close() error                             { return nil }
