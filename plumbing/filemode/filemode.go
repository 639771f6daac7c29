// Package filemode defines the small set of file modes a tree entry may
// carry (spec.md §4.10), the octal values git itself writes into tree
// object bytes.
package filemode

import (
	"errors"
	"strconv"
)

// FileMode is the stored permission/type value of a tree entry.
type FileMode uint32

const (
	Empty      FileMode = 0
	Dir        FileMode = 0o40000
	Regular    FileMode = 0o100644
	Deprecated FileMode = 0o100664
	Executable FileMode = 0o100755
	Symlink    FileMode = 0o120000
	Submodule  FileMode = 0o160000
)

var errInvalidMode = errors.New("filemode: invalid mode string")

// New parses s, the ASCII octal digits git writes before the space in a
// tree entry, into a FileMode.
func New(s string) (FileMode, error) {
	if s == "" {
		return Empty, errInvalidMode
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Empty, errInvalidMode
	}
	return FileMode(n), nil
}

// String renders the mode the way git writes it into a tree entry: no
// leading zeros, except Dir's historical "40000" (not "040000") and
// Empty's plain "0".
func (m FileMode) String() string {
	return strconv.FormatUint(uint64(m), 8)
}

// IsMalformed reports whether m is Empty, the one value a tree entry never
// carries; New already rejects strings that are not octal, so this is a
// readable guard at call sites that reject Empty specifically.
func (m FileMode) IsMalformed() bool { return m == Empty }
