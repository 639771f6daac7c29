package object

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/plumbing"
)

func TestDecodeCommitSingleParent(t *testing.T) {
	s := newMemStorer()
	tree := mustHash(t, "32858aad3c383ed1ff0a0f9bdf231d54a00c9e88")
	parent := mustHash(t, "a39771a7651f97faf5c72e08224d857fc35133db")

	raw := "tree " + tree.String() + "\n" +
		"parent " + parent.String() + "\n" +
		"author John Doe <john@example.com> 1700000000 +0000\n" +
		"committer Jane Doe <jane@example.com> 1700000100 -0500\n" +
		"\n" +
		"commit message\n\ntrailing body\n"

	h := putObject(s, plumbing.CommitObject, []byte(raw))
	eo, err := s.EncodedObject(plumbing.CommitObject, h)
	require.NoError(t, err)

	c, err := DecodeCommit(s, eo)
	require.NoError(t, err)

	require.Equal(t, h, c.Hash)
	require.Equal(t, tree, c.TreeHash)
	require.Equal(t, []plumbing.Hash{parent}, c.ParentHashes)
	require.Equal(t, 1, c.NumParents())
	require.Equal(t, "John Doe", c.Author.Name)
	require.Equal(t, "john@example.com", c.Author.Email)
	require.Equal(t, "Jane Doe", c.Committer.Name)
	require.Equal(t, "jane@example.com", c.Committer.Email)
	require.Equal(t, "commit message\n\ntrailing body\n", c.Message)
	require.Empty(t, c.PGPSignature)
	require.Equal(t, plumbing.CommitObject, c.Type())
	require.Equal(t, h, c.ID())
}

func TestDecodeCommitMultipleParents(t *testing.T) {
	s := newMemStorer()
	tree := mustHash(t, "32858aad3c383ed1ff0a0f9bdf231d54a00c9e88")
	p1 := mustHash(t, "a39771a7651f97faf5c72e08224d857fc35133db")
	p2 := mustHash(t, "d5c0f4ab811897cadf03aec358ae60d21f91c50d")

	raw := "tree " + tree.String() + "\n" +
		"parent " + p1.String() + "\n" +
		"parent " + p2.String() + "\n" +
		"author John Doe <john@example.com> 1700000000 +0000\n" +
		"committer John Doe <john@example.com> 1700000000 +0000\n" +
		"\n" +
		"merge commit\n"

	h := putObject(s, plumbing.CommitObject, []byte(raw))
	eo, err := s.EncodedObject(plumbing.CommitObject, h)
	require.NoError(t, err)

	c, err := DecodeCommit(s, eo)
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{p1, p2}, c.ParentHashes)
	require.Equal(t, 2, c.NumParents())

	parent2, err := c.Parent(1)
	require.NoError(t, err)
	require.Equal(t, p2, parent2.Hash)

	_, err = c.Parent(2)
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
	_, err = c.Parent(-1)
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestDecodeCommitFoldedGPGSignature(t *testing.T) {
	s := newMemStorer()
	tree := mustHash(t, "32858aad3c383ed1ff0a0f9bdf231d54a00c9e88")

	raw := "tree " + tree.String() + "\n" +
		"author John Doe <john@example.com> 1700000000 +0000\n" +
		"committer John Doe <john@example.com> 1700000000 +0000\n" +
		"gpgsig -----BEGIN PGP SIGNATURE-----\n" +
		" \n" +
		" iQEzBAAB...\n" +
		" -----END PGP SIGNATURE-----\n" +
		"\n" +
		"signed commit\n"

	h := putObject(s, plumbing.CommitObject, []byte(raw))
	eo, err := s.EncodedObject(plumbing.CommitObject, h)
	require.NoError(t, err)

	c, err := DecodeCommit(s, eo)
	require.NoError(t, err)
	require.Equal(t,
		"-----BEGIN PGP SIGNATURE-----\n\niQEzBAAB...\n-----END PGP SIGNATURE-----",
		c.PGPSignature)
	require.Equal(t, "signed commit\n", c.Message)
}

func TestDecodeCommitRejectsWrongType(t *testing.T) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetContent([]byte("not a commit"))

	_, err := DecodeCommit(nil, obj)
	require.ErrorIs(t, err, plumbing.ErrIncorrectObjectType)
}

func TestDecodeCommitMalformedHeaderLine(t *testing.T) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.CommitObject)
	obj.SetContent([]byte("nospacehere\n\nmsg"))

	_, err := DecodeCommit(nil, obj)
	require.ErrorIs(t, err, plumbing.ErrCorruptObject)
}

func TestDecodeCommitBadTreeHash(t *testing.T) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.CommitObject)
	obj.SetContent([]byte("tree not-a-hash\n\nmsg"))

	_, err := DecodeCommit(nil, obj)
	require.ErrorIs(t, err, plumbing.ErrCorruptObject)
}

func TestCommitTreeResolves(t *testing.T) {
	s := newMemStorer()
	treeHash := putObject(s, plumbing.TreeObject, []byte{})

	raw := "tree " + treeHash.String() + "\n" +
		"author John Doe <john@example.com> 1700000000 +0000\n" +
		"committer John Doe <john@example.com> 1700000000 +0000\n" +
		"\n" +
		"msg\n"
	h := putObject(s, plumbing.CommitObject, []byte(raw))
	eo, err := s.EncodedObject(plumbing.CommitObject, h)
	require.NoError(t, err)
	c, err := DecodeCommit(s, eo)
	require.NoError(t, err)

	tr, err := c.Tree()
	require.NoError(t, err)
	require.Equal(t, treeHash, tr.Hash)
}

func TestCommitParentsIterForEach(t *testing.T) {
	s := newMemStorer()
	tree := mustHash(t, "32858aad3c383ed1ff0a0f9bdf231d54a00c9e88")

	mkCommit := func(parents []plumbing.Hash, msg string) plumbing.Hash {
		raw := "tree " + tree.String() + "\n"
		for _, p := range parents {
			raw += "parent " + p.String() + "\n"
		}
		raw += "author John Doe <john@example.com> 1700000000 +0000\n" +
			"committer John Doe <john@example.com> 1700000000 +0000\n\n" + msg
		return putObject(s, plumbing.CommitObject, []byte(raw))
	}

	root := mkCommit(nil, "root\n")
	child := mkCommit([]plumbing.Hash{root}, "child\n")

	eo, err := s.EncodedObject(plumbing.CommitObject, child)
	require.NoError(t, err)
	c, err := DecodeCommit(s, eo)
	require.NoError(t, err)

	var visited []plumbing.Hash
	require.NoError(t, c.Parents().ForEach(func(p *Commit) error {
		visited = append(visited, p.Hash)
		return nil
	}))
	require.Equal(t, []plumbing.Hash{root}, visited)

	it := c.Parents()
	_, err = it.Next()
	require.NoError(t, err)
	_, err = it.Next()
	require.ErrorIs(t, err, io.EOF)
	it.Close()
}
