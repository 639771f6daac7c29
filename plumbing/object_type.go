package plumbing

import "strconv"

// ObjectType identifies the kind of a Git object, including the two
// delta-encoded pack representations which never escape pack decoding
// (spec.md §3.1).
type ObjectType int8

const (
	InvalidObject ObjectType = 0
	CommitObject  ObjectType = 1
	TreeObject    ObjectType = 2
	BlobObject    ObjectType = 3
	TagObject     ObjectType = 4
	// OFSDeltaObject and REFDeltaObject are pack-wire-only types: an
	// ObjectHeader may carry one of these, but a fully reconstructed
	// EncodedObject never does.
	OFSDeltaObject ObjectType = 6
	REFDeltaObject ObjectType = 7
	AnyObject      ObjectType = -1
)

// String returns git's lowercase type name, used verbatim as the header
// tag hashed into an object's id.
func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case OFSDeltaObject:
		return "ofs-delta"
	case REFDeltaObject:
		return "ref-delta"
	case AnyObject:
		return "any"
	default:
		return "unknown-object-type-" + strconv.Itoa(int(t))
	}
}

// Bytes returns the type name as a new byte slice.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// Valid reports whether t is one of the four stored object kinds.
func (t ObjectType) Valid() bool {
	switch t {
	case CommitObject, TreeObject, BlobObject, TagObject:
		return true
	default:
		return false
	}
}

// IsDelta reports whether t is one of the two pack-wire delta types.
func (t ObjectType) IsDelta() bool {
	return t == OFSDeltaObject || t == REFDeltaObject
}

// ParseObjectType maps a type name back to its ObjectType, as read from a
// loose object header or used by callers constructing objects by name.
func ParseObjectType(s string) ObjectType {
	switch s {
	case "commit":
		return CommitObject
	case "tree":
		return TreeObject
	case "blob":
		return BlobObject
	case "tag":
		return TagObject
	default:
		return InvalidObject
	}
}
