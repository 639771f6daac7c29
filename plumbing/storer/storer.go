// Package storer defines the storage-facing interfaces that the object
// database and reference database implement, and that the revision
// resolver consumes. Grounded on the teacher's plumbing/storer package
// (storer.go, index.go, shallow.go) and its surviving test files
// (object_test.go, reference_test.go).
package storer

import (
	"io"

	"github.com/yamaritta/ngit/plumbing"
)

// EncodedObjectStorer is the read/write contract an object database
// implements, independent of whether objects live loose, packed, or in an
// alternate.
type EncodedObjectStorer interface {
	NewEncodedObject() plumbing.EncodedObject
	SetEncodedObject(plumbing.EncodedObject) (plumbing.Hash, error)
	EncodedObject(plumbing.ObjectType, plumbing.Hash) (plumbing.EncodedObject, error)
	IterEncodedObjects(plumbing.ObjectType) (EncodedObjectIter, error)
	HasEncodedObject(plumbing.Hash) error
	EncodedObjectSize(plumbing.Hash) (int64, error)
}

// EncodedObjectIter iterates over a sequence of objects.
type EncodedObjectIter interface {
	Next() (plumbing.EncodedObject, error)
	ForEach(func(plumbing.EncodedObject) error) error
	Close()
}

// ReferenceStorer is the read/write contract a reference database
// implements.
type ReferenceStorer interface {
	SetReference(*plumbing.Reference) error
	// CheckAndSetReference sets new only if the store's current value for
	// new.Name() equals old (or old is nil, meaning "must not exist").
	CheckAndSetReference(new, old *plumbing.Reference) error
	Reference(plumbing.ReferenceName) (*plumbing.Reference, error)
	IterReferences() (ReferenceIter, error)
	RemoveReference(plumbing.ReferenceName) error
	CountLooseRefs() (int, error)
	PackRefs() error
}

// ReferenceIter iterates over a sequence of references.
type ReferenceIter interface {
	Next() (*plumbing.Reference, error)
	ForEach(func(*plumbing.Reference) error) error
	Close()
}

// Storer aggregates both halves of persistent state a Repository needs.
type Storer interface {
	EncodedObjectStorer
	ReferenceStorer
}

// Initializer is implemented by storers that must perform setup the first
// time a repository is created (e.g. writing the initial HEAD file).
type Initializer interface {
	Init() error
}

// ReferenceSliceIter is the simplest ReferenceIter: a fixed in-memory slice.
// Grounded on the teacher's plumbing/storer/reference_test.go, the only
// surviving evidence of this type's contract.
type ReferenceSliceIter struct {
	series []*plumbing.Reference
	pos    int
}

// NewReferenceSliceIter returns an iterator over series.
func NewReferenceSliceIter(series []*plumbing.Reference) ReferenceIter {
	return &ReferenceSliceIter{series: series}
}

func (it *ReferenceSliceIter) Next() (*plumbing.Reference, error) {
	if it.pos >= len(it.series) {
		return nil, io.EOF
	}
	obj := it.series[it.pos]
	it.pos++
	return obj, nil
}

func (it *ReferenceSliceIter) ForEach(cb func(*plumbing.Reference) error) error {
	for _, r := range it.series {
		if err := cb(r); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

func (it *ReferenceSliceIter) Close() { it.pos = len(it.series) }

// EncodedObjectSliceIter is the object-side equivalent of
// ReferenceSliceIter.
type EncodedObjectSliceIter struct {
	series []plumbing.EncodedObject
	pos    int
}

// NewEncodedObjectSliceIter returns an iterator over series.
func NewEncodedObjectSliceIter(series []plumbing.EncodedObject) EncodedObjectIter {
	return &EncodedObjectSliceIter{series: series}
}

func (it *EncodedObjectSliceIter) Next() (plumbing.EncodedObject, error) {
	if it.pos >= len(it.series) {
		return nil, io.EOF
	}
	obj := it.series[it.pos]
	it.pos++
	return obj, nil
}

func (it *EncodedObjectSliceIter) ForEach(cb func(plumbing.EncodedObject) error) error {
	for _, o := range it.series {
		if err := cb(o); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

func (it *EncodedObjectSliceIter) Close() { it.pos = len(it.series) }
