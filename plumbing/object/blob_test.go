package object

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/plumbing"
)

func TestGetBlobReadsContent(t *testing.T) {
	s := newMemStorer()
	h := putObject(s, plumbing.BlobObject, []byte("blob payload"))

	b, err := GetBlob(s, h)
	require.NoError(t, err)
	require.Equal(t, h, b.ID())
	require.Equal(t, plumbing.BlobObject, b.Type())
	require.Equal(t, int64(len("blob payload")), b.Size())

	r, err := b.Reader()
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "blob payload", string(got))
}

func TestGetBlobMissing(t *testing.T) {
	s := newMemStorer()
	_, err := GetBlob(s, plumbing.ZeroHash)
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestDecodeObjectDispatchesBlob(t *testing.T) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetContent([]byte("x"))

	got, err := DecodeObject(nil, obj)
	require.NoError(t, err)
	require.IsType(t, &Blob{}, got)
}
