package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/plumbing"
)

func TestGetObjectDispatchesByStoredType(t *testing.T) {
	s := newMemStorer()
	h := putObject(s, plumbing.BlobObject, []byte("x"))

	obj, err := GetObject(s, h)
	require.NoError(t, err)
	require.IsType(t, &Blob{}, obj)
	require.Equal(t, h, obj.ID())
}

func TestGetObjectMissing(t *testing.T) {
	s := newMemStorer()
	_, err := GetObject(s, plumbing.ZeroHash)
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestDecodeObjectUnsupportedType(t *testing.T) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.OFSDeltaObject)
	obj.SetContent([]byte("x"))

	_, err := DecodeObject(nil, obj)
	require.ErrorIs(t, err, plumbing.ErrCorruptObject)
}

func TestGetCommitWrongTypeNotFound(t *testing.T) {
	s := newMemStorer()
	h := putObject(s, plumbing.BlobObject, []byte("x"))

	_, err := GetCommit(s, h)
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}
