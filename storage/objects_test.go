package storage

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/cache"
	"github.com/yamaritta/ngit/plumbing"
)

func newTestObjectDatabase(t *testing.T) (*ObjectDatabase, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	db, err := NewObjectDatabase(fs, cache.DefaultOptions())
	require.NoError(t, err)
	return db, fs
}

func TestObjectDatabaseSetAndGetLooseObject(t *testing.T) {
	db, _ := newTestObjectDatabase(t)

	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetContent([]byte("hello world"))

	h, err := db.SetEncodedObject(obj)
	require.NoError(t, err)
	require.Equal(t, obj.Hash(), h)

	require.True(t, db.Has(h))
	require.NoError(t, db.HasEncodedObject(h))

	got, err := db.EncodedObject(plumbing.BlobObject, h)
	require.NoError(t, err)
	require.Equal(t, obj.Hash(), got.Hash())
	require.Equal(t, obj.Bytes(), got.Bytes())
}

func TestObjectDatabaseMissingObject(t *testing.T) {
	db, _ := newTestObjectDatabase(t)
	require.False(t, db.Has(plumbing.ZeroHash))
	require.ErrorIs(t, db.HasEncodedObject(plumbing.ZeroHash), plumbing.ErrObjectNotFound)

	_, err := db.EncodedObject(plumbing.AnyObject, plumbing.ZeroHash)
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestObjectDatabaseTypeMismatchNotFound(t *testing.T) {
	db, _ := newTestObjectDatabase(t)
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetContent([]byte("x"))
	h, err := db.SetEncodedObject(obj)
	require.NoError(t, err)

	_, err = db.EncodedObject(plumbing.TreeObject, h)
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestObjectDatabaseIterEncodedObjectsByType(t *testing.T) {
	db, _ := newTestObjectDatabase(t)

	blob := plumbing.NewMemoryObject()
	blob.SetType(plumbing.BlobObject)
	blob.SetContent([]byte("a blob"))
	_, err := db.SetEncodedObject(blob)
	require.NoError(t, err)

	tree := plumbing.NewMemoryObject()
	tree.SetType(plumbing.TreeObject)
	tree.SetContent([]byte("a tree"))
	_, err = db.SetEncodedObject(tree)
	require.NoError(t, err)

	iter, err := db.IterEncodedObjects(plumbing.BlobObject)
	require.NoError(t, err)
	var hashes []plumbing.Hash
	require.NoError(t, iter.ForEach(func(o plumbing.EncodedObject) error {
		hashes = append(hashes, o.Hash())
		return nil
	}))
	require.Equal(t, []plumbing.Hash{blob.Hash()}, hashes)
}

func TestObjectDatabaseResolveUniqueByFullHex(t *testing.T) {
	db, _ := newTestObjectDatabase(t)
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetContent([]byte("full hex lookup"))
	h, err := db.SetEncodedObject(obj)
	require.NoError(t, err)

	got, err := db.ResolveUnique(h.String())
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestObjectDatabaseResolveUniqueByAbbreviation(t *testing.T) {
	db, _ := newTestObjectDatabase(t)
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetContent([]byte("abbreviation lookup target"))
	h, err := db.SetEncodedObject(obj)
	require.NoError(t, err)

	got, err := db.ResolveUnique(h.String()[:8])
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestObjectDatabaseResolveUniqueNotFound(t *testing.T) {
	db, _ := newTestObjectDatabase(t)
	_, err := db.ResolveUnique("deadbeef")
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestObjectDatabaseResolveUniqueAmbiguous(t *testing.T) {
	db, _ := newTestObjectDatabase(t)

	// Craft two objects whose hashes happen to share a short prefix by
	// brute-forcing content until a collision on the first two hex nibbles
	// is found; with a 1/256 chance per attempt this takes a few hundred
	// tries on average, and the same number on every run.
	var first, second plumbing.Hash
	for i := 0; ; i++ {
		obj := plumbing.NewMemoryObject()
		obj.SetType(plumbing.BlobObject)
		obj.SetContent([]byte{byte(i), byte(i >> 8)})
		h, err := db.SetEncodedObject(obj)
		require.NoError(t, err)

		if first.IsZero() {
			first = h
			continue
		}
		if h.String()[:2] == first.String()[:2] && h != first {
			second = h
			break
		}
		if i > 100000 {
			t.Fatal("failed to find a colliding prefix")
		}
	}

	_, err := db.ResolveUnique(first.String()[:2])
	var ambiguous *plumbing.AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	require.Contains(t, ambiguous.Candidates, first)
	require.Contains(t, ambiguous.Candidates, second)
}

func TestObjectDatabaseFollowsAlternates(t *testing.T) {
	mainFS := memfs.New()

	// "other-repo" stands in for a second repository's .git directory;
	// its objects live under other-repo/objects, exactly what a real
	// alternates entry names.
	otherGitFS, err := mainFS.Chroot("other-repo")
	require.NoError(t, err)
	otherDB, err := NewObjectDatabase(otherGitFS, cache.DefaultOptions())
	require.NoError(t, err)

	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetContent([]byte("lives only in the alternate"))
	h, err := otherDB.SetEncodedObject(obj)
	require.NoError(t, err)

	require.NoError(t, mainFS.MkdirAll("objects/info", 0o777))
	f, err := mainFS.Create("objects/info/alternates")
	require.NoError(t, err)
	_, err = f.Write([]byte("../other-repo/objects\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	db, err := NewObjectDatabase(mainFS, cache.DefaultOptions())
	require.NoError(t, err)

	require.True(t, db.Has(h))
	got, err := db.EncodedObject(plumbing.AnyObject, h)
	require.NoError(t, err)
	require.Equal(t, h, got.Hash())
}
