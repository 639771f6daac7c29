package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/plumbing"
)

func TestDecodeTagTargetingCommit(t *testing.T) {
	s := newMemStorer()

	commitHash := putObject(s, plumbing.CommitObject, []byte(
		"tree "+mustHash(t, "32858aad3c383ed1ff0a0f9bdf231d54a00c9e88").String()+
			"\nauthor a <a@b.c> 1700000000 +0000\ncommitter a <a@b.c> 1700000000 +0000\n\nmsg\n"))

	raw := "object " + commitHash.String() + "\n" +
		"type commit\n" +
		"tag v1.0.0\n" +
		"tagger Jane Doe <jane@example.com> 1700000000 +0000\n" +
		"\n" +
		"release notes\n"
	h := putObject(s, plumbing.TagObject, []byte(raw))

	tag, err := GetTag(s, h)
	require.NoError(t, err)
	require.Equal(t, h, tag.ID())
	require.Equal(t, plumbing.TagObject, tag.Type())
	require.Equal(t, "v1.0.0", tag.Name)
	require.Equal(t, commitHash, tag.Target)
	require.Equal(t, plumbing.CommitObject, tag.TargetType)
	require.Equal(t, "Jane Doe", tag.Tagger.Name)
	require.Equal(t, "release notes\n", tag.Message)

	c, err := tag.Commit()
	require.NoError(t, err)
	require.Equal(t, commitHash, c.Hash)

	_, err = tag.Tree()
	require.ErrorIs(t, err, plumbing.ErrIncorrectObjectType)

	obj, err := tag.Object()
	require.NoError(t, err)
	require.Equal(t, commitHash, obj.ID())
}

func TestDecodeTagRejectsWrongType(t *testing.T) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetContent([]byte("not a tag"))

	_, err := DecodeTag(nil, obj)
	require.ErrorIs(t, err, plumbing.ErrIncorrectObjectType)
}

func TestDecodeTagMalformedHeader(t *testing.T) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.TagObject)
	obj.SetContent([]byte("nospace\n\nmsg"))

	_, err := DecodeTag(nil, obj)
	require.ErrorIs(t, err, plumbing.ErrCorruptObject)
}

func TestDecodeTagBadObjectHash(t *testing.T) {
	obj := plumbing.NewMemoryObject()
	obj.SetType(plumbing.TagObject)
	obj.SetContent([]byte("object not-a-hash\ntype commit\ntag v1\n\nmsg"))

	_, err := DecodeTag(nil, obj)
	require.ErrorIs(t, err, plumbing.ErrCorruptObject)
}
