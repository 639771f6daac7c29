package plumbing

import "strings"

// ReferenceType distinguishes a direct (hash) reference from a symbolic
// one. Grounded on the teacher's core/reference.go.
type ReferenceType int8

const (
	InvalidReference  ReferenceType = 0
	HashReference     ReferenceType = 1
	SymbolicReference ReferenceType = 2
)

// ReferenceName is a fully-qualified ref name ("refs/heads/master", "HEAD").
type ReferenceName string

// HEAD is the name of the repository's current-branch pointer.
const HEAD ReferenceName = "HEAD"

const (
	refPrefix       = "refs/"
	refHeadPrefix   = refPrefix + "heads/"
	refTagPrefix    = refPrefix + "tags/"
	refRemotePrefix = refPrefix + "remotes/"
	refNotePrefix   = refPrefix + "notes/"
	symrefPrefix    = "ref: "
)

// String returns the ref name as a string.
func (n ReferenceName) String() string { return string(n) }

// IsBranch reports whether n is under refs/heads/.
func (n ReferenceName) IsBranch() bool { return strings.HasPrefix(string(n), refHeadPrefix) }

// IsTag reports whether n is under refs/tags/.
func (n ReferenceName) IsTag() bool { return strings.HasPrefix(string(n), refTagPrefix) }

// IsRemote reports whether n is under refs/remotes/.
func (n ReferenceName) IsRemote() bool { return strings.HasPrefix(string(n), refRemotePrefix) }

// IsNote reports whether n is under refs/notes/.
func (n ReferenceName) IsNote() bool { return strings.HasPrefix(string(n), refNotePrefix) }

// StorageClass records where a Reference was read from, per spec.md §3.1.
type StorageClass int8

const (
	// UnknownStorage is the zero value; set by constructors that don't
	// know their origin (e.g. references built purely in memory).
	UnknownStorage StorageClass = iota
	LooseStorage
	PackedStorage
	// LoosePackedStorage means a loose copy is present and authoritative
	// but a stale entry for the same name also exists in packed-refs.
	LoosePackedStorage
	NetworkStorage
	NewStorage
)

// Reference is either a direct (hash-valued) or symbolic (name-valued)
// pointer, per spec.md §3.1.
type Reference struct {
	typ     ReferenceType
	name    ReferenceName
	hash    Hash
	target  ReferenceName
	storage StorageClass
	peeled  Hash
	hasPeel bool
}

// NewHashReference creates a direct reference.
func NewHashReference(name ReferenceName, h Hash) *Reference {
	return &Reference{typ: HashReference, name: name, hash: h}
}

// NewSymbolicReference creates a symbolic reference.
func NewSymbolicReference(name, target ReferenceName) *Reference {
	return &Reference{typ: SymbolicReference, name: name, target: target}
}

// NewReferenceFromStrings parses target the way a ref file's contents would
// be parsed: a "ref: <name>\n" line yields a symbolic reference, a bare hex
// hash yields a direct one. Grounded on the teacher's
// core.NewReferenceFromStrings / internal/dotgit readReferenceFile.
func NewReferenceFromStrings(name, target string) *Reference {
	if strings.HasPrefix(target, symrefPrefix) {
		return NewSymbolicReference(ReferenceName(name), ReferenceName(strings.TrimSpace(target[len(symrefPrefix):])))
	}

	h, err := FromHexLoose(target)
	if err != nil {
		h = ZeroHash
	}
	return NewHashReference(ReferenceName(name), h)
}

// FromHexLoose parses a hash allowing surrounding whitespace, as tolerated
// by loose ref files.
func FromHexLoose(s string) (Hash, error) {
	return parseHashTrim(s)
}

// Type returns whether r is a direct or symbolic reference.
func (r *Reference) Type() ReferenceType { return r.typ }

// Name returns r's own name.
func (r *Reference) Name() ReferenceName { return r.name }

// Hash returns the target hash of a direct reference; ZeroHash otherwise.
func (r *Reference) Hash() Hash { return r.hash }

// Target returns the target name of a symbolic reference; empty otherwise.
func (r *Reference) Target() ReferenceName { return r.target }

// Storage reports where this reference was read from.
func (r *Reference) Storage() StorageClass { return r.storage }

// SetStorage records where this reference was read from.
func (r *Reference) SetStorage(s StorageClass) { r.storage = s }

// Peeled returns the peeled (non-tag) target recorded for an annotated tag
// in packed-refs, and whether one was recorded at all.
func (r *Reference) Peeled() (Hash, bool) { return r.peeled, r.hasPeel }

// SetPeeled records the peeled target for an annotated tag reference.
func (r *Reference) SetPeeled(h Hash) {
	r.peeled = h
	r.hasPeel = true
}

// IsBranch, IsTag, IsRemote, IsNote delegate to the reference's own name.
func (r *Reference) IsBranch() bool { return r.name.IsBranch() }
func (r *Reference) IsTag() bool    { return r.name.IsTag() }
func (r *Reference) IsRemote() bool { return r.name.IsRemote() }
func (r *Reference) IsNote() bool   { return r.name.IsNote() }

// String renders r the way it would be written to a loose ref file (without
// a trailing newline).
func (r *Reference) String() string {
	if r.typ == SymbolicReference {
		return symrefPrefix + string(r.target)
	}
	return r.hash.String()
}
