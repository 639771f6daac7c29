package object

import (
	"io"

	"github.com/yamaritta/ngit/plumbing"
	"github.com/yamaritta/ngit/plumbing/storer"
)

// Blob is a thin wrapper giving a blob's raw EncodedObject the same Object
// surface (ID/Type) as Commit, Tree, and Tag. Blobs carry no structure
// beyond their bytes, so there is nothing to decode.
type Blob struct {
	obj plumbing.EncodedObject
}

func (b *Blob) ID() plumbing.Hash         { return b.obj.Hash() }
func (b *Blob) Type() plumbing.ObjectType { return plumbing.BlobObject }
func (b *Blob) Size() int64               { return b.obj.Size() }
func (b *Blob) Reader() (io.ReadCloser, error) {
	return b.obj.Reader()
}

// GetBlob decodes h as a Blob.
func GetBlob(s storer.EncodedObjectStorer, h plumbing.Hash) (*Blob, error) {
	eo, err := s.EncodedObject(plumbing.BlobObject, h)
	if err != nil {
		return nil, err
	}
	return &Blob{obj: eo}, nil
}
