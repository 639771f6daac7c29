// Package cache implements the MappedWindowCache (spec.md §4.2), the object
// LRU, and the delta-base LRU that the packfile decoder shares across
// concurrent readers.
package cache

import "dario.cat/mergo"

// FileSize is a byte count, matching the teacher's plumbing/cache unit
// constants (Byte/KiByte/MiByte/GiByte).
type FileSize int64

const (
	Byte FileSize = 1 << (iota * 10)
	KiByte
	MiByte
	GiByte
)

// Options configures a WindowCache, matching the option table in spec.md
// §4.2.
type Options struct {
	// PackedGitWindowSize is the window stride in bytes; must be a power
	// of two.
	PackedGitWindowSize FileSize
	// PackedGitLimit is the total window bytes retained before eviction.
	PackedGitLimit FileSize
	// PackedGitMmap selects memory mapping over heap copies, where the
	// platform supports it (spec.md §9).
	PackedGitMmap bool
	// DeltaBaseCacheLimit bounds the bytes of inflated delta bases
	// retained across reads.
	DeltaBaseCacheLimit FileSize
	// StreamFileThreshold is the size above which loaders stream instead
	// of materializing a whole object.
	StreamFileThreshold FileSize
}

// DefaultOptions returns the option set the teacher's defaults imply.
func DefaultOptions() Options {
	return Options{
		PackedGitWindowSize: 8 * KiByte,
		PackedGitLimit:      128 * MiByte,
		PackedGitMmap:       false,
		DeltaBaseCacheLimit: 96 * MiByte,
		StreamFileThreshold: 20 * MiByte,
	}
}

// WithDefaults merges o on top of DefaultOptions: any zero-valued field in o
// is filled from the default, via dario.cat/mergo (the teacher's own
// struct-merging dependency) instead of a hand-rolled field-by-field check.
// mergo.Merge only fills fields that are empty in the destination, so o
// (the caller's overrides) is the destination and the defaults are the
// source.
func WithDefaults(o Options) (Options, error) {
	out := o
	if err := mergo.Merge(&out, DefaultOptions()); err != nil {
		return Options{}, err
	}
	return out, nil
}
