package object

import (
	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/storer"
)

// memStorer is a minimal in-memory storer.EncodedObjectStorer, enough to
// exercise Commit/Tree/Tag cross-references without pulling in the storage
// package (which itself depends on this package through revision).
type memStorer struct {
	objs map[plumbing.Hash]plumbing.EncodedObject
}

func newMemStorer() *memStorer {
	return &memStorer{objs: make(map[plumbing.Hash]plumbing.EncodedObject)}
}

func (m *memStorer) NewEncodedObject() plumbing.EncodedObject {
	return plumbing.NewMemoryObject()
}

func (m *memStorer) SetEncodedObject(o plumbing.EncodedObject) (plumbing.Hash, error) {
	m.objs[o.Hash()] = o
	return o.Hash(), nil
}

func (m *memStorer) EncodedObject(t plumbing.ObjectType, h plumbing.Hash) (plumbing.EncodedObject, error) {
	o, ok := m.objs[h]
	if !ok {
		return nil, plumbing.ErrObjectNotFound
	}
	if t != plumbing.AnyObject && o.Type() != t {
		return nil, plumbing.ErrObjectNotFound
	}
	return o, nil
}

func (m *memStorer) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	var series []plumbing.EncodedObject
	for _, o := range m.objs {
		if t == plumbing.AnyObject || o.Type() == t {
			series = append(series, o)
		}
	}
	return storer.NewEncodedObjectSliceIter(series), nil
}

func (m *memStorer) HasEncodedObject(h plumbing.Hash) error {
	if _, ok := m.objs[h]; !ok {
		return plumbing.ErrObjectNotFound
	}
	return nil
}

func (m *memStorer) EncodedObjectSize(h plumbing.Hash) (int64, error) {
	o, ok := m.objs[h]
	if !ok {
		return 0, plumbing.ErrObjectNotFound
	}
	return o.Size(), nil
}

func putObject(s *memStorer, typ plumbing.ObjectType, content []byte) plumbing.Hash {
	obj := plumbing.NewMemoryObject()
	obj.SetType(typ)
	obj.SetContent(content)
	h, _ := s.SetEncodedObject(obj)
	return h
}
