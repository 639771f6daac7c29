// Package objfile reads and writes loose Git objects: a zlib stream whose
// first inflated bytes are the header "<type> <size>\0", followed by the
// object's raw payload (spec.md §3.1/§4.5).
package objfile

import "errors"

var (
	// ErrOverflow is returned by Write when more bytes are written than
	// the size declared in WriteHeader.
	ErrOverflow = errors.New("objfile: write beyond declared size")
	// ErrNegativeSize is returned by WriteHeader for a negative size.
	ErrNegativeSize = errors.New("objfile: negative object size")
	// ErrInvalidType is returned by WriteHeader for an unrecognized type.
	ErrInvalidType = errors.New("objfile: invalid object type")
	// ErrMalformedHeader is returned when the inflated header doesn't
	// parse as "<type> <size>".
	ErrMalformedHeader = errors.New("objfile: malformed header")
	// ErrHashMismatch names a computed hash that doesn't match the expected
	// id (spec.md §3.2 invariant 6). Nothing in this package returns it: the
	// Reader does not know the expected id, and storage's loose-object reads
	// report a mismatch as plumbing.ErrCorruptObject.
	ErrHashMismatch = errors.New("objfile: hash mismatch")
)
