package plumbing

import (
	"errors"
	"fmt"
)

// Sentinel errors covering the taxonomy in spec.md §7. Each low-level
// decoder returns one of these (possibly wrapped with location detail via
// fmt.Errorf("...: %w", ...)); higher layers (ObjectDatabase, RefUpdate)
// translate them into result enums rather than propagating raw errors to
// callers that expect a value.
var (
	// ErrObjectNotFound means an object id is not present in the
	// consulted store(s).
	ErrObjectNotFound = errors.New("object not found")

	// ErrReferenceNotFound means a ref name has no entry in the ref
	// database.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrAmbiguous wraps an abbreviation that matched more than one
	// object; AmbiguousError's Candidates field holds every colliding id.
	ErrAmbiguous = errors.New("ambiguous object id")

	// ErrCorruptObject covers bad magic, bad varints, length mismatches,
	// checksum mismatches, bad zlib framing, delta cycles, and malformed
	// tree entries.
	ErrCorruptObject = errors.New("corrupt object")

	// ErrIncorrectObjectType means a peel operation reached an object of
	// a kind other than the one requested.
	ErrIncorrectObjectType = errors.New("incorrect object type")

	// ErrInvalidReferenceName means a ref name fails the naming rules
	// (no "..", no leading dot, no "@{", no trailing ".lock", etc).
	ErrInvalidReferenceName = errors.New("invalid reference name")

	// ErrLockFailed means a lock file could not be created exclusively,
	// or an expected-old-value precondition did not hold.
	ErrLockFailed = errors.New("lock failed")

	// ErrLargeObject means an object's materialized size exceeds the
	// configured streaming threshold; callers must use a streaming
	// reader instead of buffering the whole payload.
	ErrLargeObject = errors.New("object too large to materialize")

	// ErrCancelled means an operation observed a cancellation token
	// before completing.
	ErrCancelled = errors.New("operation cancelled")
)

// AmbiguousError carries every object id an abbreviation matched, per
// spec.md §4.1/§4.6.
type AmbiguousError struct {
	Abbreviation string
	Candidates   []Hash
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous object id %q: %d candidates", e.Abbreviation, len(e.Candidates))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }

// CorruptObjectError attaches a location (file and byte offset) to
// ErrCorruptObject, per the propagation policy in spec.md §7.
type CorruptObjectError struct {
	File   string
	Offset int64
	Cause  error
}

func (e *CorruptObjectError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("corrupt object in %s at offset %d", e.File, e.Offset)
	}
	return fmt.Sprintf("corrupt object in %s at offset %d: %s", e.File, e.Offset, e.Cause)
}

func (e *CorruptObjectError) Unwrap() error { return ErrCorruptObject }

// PermanentError represents an unrecoverable error from a lower layer,
// distinguished from errors a caller might retry past (e.g. trying the next
// alternate). Grounded on the teacher's plumbing/error.go.
type PermanentError struct {
	Err error
}

// NewPermanentError wraps err, or returns nil if err is nil.
func NewPermanentError(err error) *PermanentError {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %s", e.Err.Error())
}

func (e *PermanentError) Unwrap() error { return e.Err }
