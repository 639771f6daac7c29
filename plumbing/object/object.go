// Package object decodes the three structured object kinds spec.md §4.9
// names — commit, tree, and tag — out of the plumbing.EncodedObject bytes
// the storage package hands back. Blobs need no structure beyond their raw
// bytes, so they are represented as a plain plumbing.EncodedObject.
//
// This package is read-only: there is no commit/tree/tag construction API,
// matching spec.md's Non-goals (no porcelain, no working-tree checkout) —
// the only writer this module exposes is storage.ObjectDatabase.SetEncodedObject
// against an already-serialized payload.
package object

import (
	"fmt"
	"io"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/storer"
)

// Object is the common surface every decoded object kind satisfies, mirroring
// the teacher's plumbing/object.Object interface.
type Object interface {
	ID() plumbing.Hash
	Type() plumbing.ObjectType
}

// GetObject decodes h as whatever kind it actually is, dispatching on the
// stored header's ObjectType (spec.md §3.1).
func GetObject(s storer.EncodedObjectStorer, h plumbing.Hash) (Object, error) {
	eo, err := s.EncodedObject(plumbing.AnyObject, h)
	if err != nil {
		return nil, err
	}
	return DecodeObject(s, eo)
}

// DecodeObject builds the typed Object a raw EncodedObject represents.
func DecodeObject(s storer.EncodedObjectStorer, eo plumbing.EncodedObject) (Object, error) {
	switch eo.Type() {
	case plumbing.CommitObject:
		return DecodeCommit(s, eo)
	case plumbing.TreeObject:
		return DecodeTree(s, eo)
	case plumbing.TagObject:
		return DecodeTag(s, eo)
	case plumbing.BlobObject:
		return &Blob{obj: eo}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported object type %s", plumbing.ErrCorruptObject, eo.Type())
	}
}

// GetCommit decodes h as a Commit. If h names an object of a different
// kind, the storer's own error is returned when it filters by type (such
// storers report ErrObjectNotFound); an object it hands back anyway fails
// with ErrIncorrectObjectType.
func GetCommit(s storer.EncodedObjectStorer, h plumbing.Hash) (*Commit, error) {
	eo, err := s.EncodedObject(plumbing.CommitObject, h)
	if err != nil {
		return nil, err
	}
	return DecodeCommit(s, eo)
}

// GetTree decodes h as a Tree.
func GetTree(s storer.EncodedObjectStorer, h plumbing.Hash) (*Tree, error) {
	eo, err := s.EncodedObject(plumbing.TreeObject, h)
	if err != nil {
		return nil, err
	}
	return DecodeTree(s, eo)
}

// GetTag decodes h as a Tag.
func GetTag(s storer.EncodedObjectStorer, h plumbing.Hash) (*Tag, error) {
	eo, err := s.EncodedObject(plumbing.TagObject, h)
	if err != nil {
		return nil, err
	}
	return DecodeTag(s, eo)
}

// readAll slurps an EncodedObject's payload, the shared first step of every
// decoder in this package.
func readAll(eo plumbing.EncodedObject) ([]byte, error) {
	r, err := eo.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
