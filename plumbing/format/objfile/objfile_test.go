package objfile

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/plumbing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("blob content for objfile round-trip\n")

	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(plumbing.BlobObject, int64(len(payload))))
	n, err := w.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, w.Close())

	wantHash := w.Hash()
	require.Equal(t, plumbing.HashObject(plumbing.BlobObject, payload), wantHash)

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	typ, size, err := r.Header()
	require.NoError(t, err)
	require.Equal(t, plumbing.BlobObject, typ)
	require.Equal(t, int64(len(payload)), size)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Equal(t, wantHash, r.Hash())
	require.NoError(t, r.Close())
}

func TestWriteRejectsOverflow(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(plumbing.BlobObject, 3))

	_, err := w.Write([]byte("abcdef"))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestWriteHeaderRejectsNegativeSize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteHeader(plumbing.BlobObject, -1)
	require.ErrorIs(t, err, ErrNegativeSize)
}

func TestReaderRejectsMalformedHeader(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte("not-a-type-with-no-null-terminator"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	_, _, err = r.Header()
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestReaderRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte("bogus 3\x00abc"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	_, _, err = r.Header()
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestNewReaderRejectsNonZlib(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not zlib data at all")))
	require.Error(t, err)
}
