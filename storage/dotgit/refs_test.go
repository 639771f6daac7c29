package dotgit

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/plumbing"
)

func mustHexRef(t *testing.T, s string) plumbing.Hash {
	t.Helper()
	h, err := plumbing.FromHexLoose(s)
	require.NoError(t, err)
	return h
}

func TestRefDatabaseInitWritesHEAD(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	require.NoError(t, db.Init())

	head, err := db.Reference(plumbing.HEAD)
	require.NoError(t, err)
	require.Equal(t, plumbing.SymbolicReference, head.Type())
	require.Equal(t, plumbing.ReferenceName("refs/heads/master"), head.Target())
}

func TestSetReferenceAndReadBack(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "49322bb17d3acc9146f98c97d078513228bbf3c0")

	ref := plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/master"), h)
	require.NoError(t, db.SetReference(ref))

	got, err := db.Reference(plumbing.ReferenceName("refs/heads/master"))
	require.NoError(t, err)
	require.Equal(t, h, got.Hash())
	require.Equal(t, plumbing.LooseStorage, got.Storage())
}

func TestReferenceMissingReturnsNotFound(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	_, err := db.Reference(plumbing.ReferenceName("refs/heads/nope"))
	require.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestLooseRefTakesPrecedenceOverPacked(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	packedHash := mustHexRef(t, "1111111111111111111111111111111111111111")
	looseHash := mustHexRef(t, "2222222222222222222222222222222222222222")

	require.NoError(t, db.writePackedRefs([]*plumbing.Reference{
		plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/master"), packedHash),
	}))
	require.NoError(t, db.SetReference(plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/master"), looseHash)))

	got, err := db.Reference(plumbing.ReferenceName("refs/heads/master"))
	require.NoError(t, err)
	require.Equal(t, looseHash, got.Hash())
	require.Equal(t, plumbing.LooseStorage, got.Storage())
}

func TestGetRefSearchOrder(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "3333333333333333333333333333333333333333")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(plumbing.ReferenceName("refs/tags/v1.0.0"), h)))

	got, err := db.GetRef("v1.0.0")
	require.NoError(t, err)
	require.Equal(t, h, got.Hash())
	require.Equal(t, plumbing.ReferenceName("refs/tags/v1.0.0"), got.Name())
}

func TestGetRefNotFound(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	_, err := db.GetRef("nonexistent")
	require.Error(t, err)
}

func TestPackedRefsWithPeeled(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	tagHash := mustHexRef(t, "4444444444444444444444444444444444444444")
	peeled := mustHexRef(t, "5555555555555555555555555555555555555555")

	ref := plumbing.NewHashReference(plumbing.ReferenceName("refs/tags/annotated"), tagHash)
	ref.SetPeeled(peeled)
	require.NoError(t, db.writePackedRefs([]*plumbing.Reference{ref}))

	got, err := db.Reference(plumbing.ReferenceName("refs/tags/annotated"))
	require.NoError(t, err)
	gotPeeled, ok := got.Peeled()
	require.True(t, ok)
	require.Equal(t, peeled, gotPeeled)
	require.Equal(t, plumbing.PackedStorage, got.Storage())
}

func TestGetRefsByPrefixMergesLooseAndPacked(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	packedHash := mustHexRef(t, "6666666666666666666666666666666666666666")
	looseHash := mustHexRef(t, "7777777777777777777777777777777777777777")

	require.NoError(t, db.writePackedRefs([]*plumbing.Reference{
		plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/old"), packedHash),
	}))
	require.NoError(t, db.SetReference(plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/new"), looseHash)))

	refs, err := db.GetRefs("refs/heads/")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Contains(t, refs, plumbing.ReferenceName("refs/heads/old"))
	require.Contains(t, refs, plumbing.ReferenceName("refs/heads/new"))
}

func TestPackRefsMovesLooseIntoPackedAndRemovesLooseFiles(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "8888888888888888888888888888888888888888")
	name := plumbing.ReferenceName("refs/heads/master")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(name, h)))

	require.NoError(t, db.PackRefs())

	_, err := db.readLooseRef(name)
	require.Error(t, err)

	got, err := db.Reference(name)
	require.NoError(t, err)
	require.Equal(t, h, got.Hash())
	require.Equal(t, plumbing.PackedStorage, got.Storage())
}

func TestResolveSymbolicFollowsHEAD(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "9999999999999999999999999999999999999999")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/master"), h)))
	require.NoError(t, db.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/master")))

	got, err := db.Resolve(plumbing.HEAD)
	require.NoError(t, err)
	require.Equal(t, plumbing.HashReference, got.Type())
	require.Equal(t, h, got.Hash())
}

func TestResolveSymbolicDetectsCycle(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	require.NoError(t, db.SetReference(plumbing.NewSymbolicReference(plumbing.ReferenceName("refs/heads/a"), "refs/heads/b")))
	require.NoError(t, db.SetReference(plumbing.NewSymbolicReference(plumbing.ReferenceName("refs/heads/b"), "refs/heads/a")))

	_, err := db.Resolve(plumbing.ReferenceName("refs/heads/a"))
	require.ErrorIs(t, err, ErrSymRefCycle)
}

func TestCountLooseRefs(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/one"), h)))
	require.NoError(t, db.SetReference(plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/two"), h)))

	n, err := db.CountLooseRefs()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestIterReferences(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(plumbing.ReferenceName("refs/heads/only"), h)))

	iter, err := db.IterReferences()
	require.NoError(t, err)
	defer iter.Close()

	var names []plumbing.ReferenceName
	require.NoError(t, iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name())
		return nil
	}))
	require.Equal(t, []plumbing.ReferenceName{plumbing.ReferenceName("refs/heads/only")}, names)
}
