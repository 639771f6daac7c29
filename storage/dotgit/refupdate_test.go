package dotgit

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/yamaritta/ngit/plumbing"
)

func TestRefUpdateCreatesNewRef(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "1111111111111111111111111111111111111111")

	u := db.NewUpdate(plumbing.ReferenceName("refs/heads/master"))
	u.SetNewObjectID(h)
	u.SetRefLogMessage("create")

	result, err := u.Update()
	require.NoError(t, err)
	require.Equal(t, UpdateNew, result)

	got, err := db.Reference(plumbing.ReferenceName("refs/heads/master"))
	require.NoError(t, err)
	require.Equal(t, h, got.Hash())

	entries, err := db.ReadReflog(plumbing.ReferenceName("refs/heads/master"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, plumbing.ZeroHash, entries[0].Old)
	require.Equal(t, h, entries[0].New)
	require.Equal(t, "create", entries[0].Message)
}

func TestRefUpdateNoChange(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "2222222222222222222222222222222222222222")
	name := plumbing.ReferenceName("refs/heads/master")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(name, h)))

	u := db.NewUpdate(name)
	u.SetNewObjectID(h)
	result, err := u.Update()
	require.NoError(t, err)
	require.Equal(t, UpdateNoChange, result)
}

func TestRefUpdateRejectsWithoutReachabilityChecker(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	old := mustHexRef(t, "3333333333333333333333333333333333333333")
	new := mustHexRef(t, "4444444444444444444444444444444444444444")
	name := plumbing.ReferenceName("refs/heads/feature")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(name, old)))

	u := db.NewUpdate(name)
	u.SetNewObjectID(new)
	result, err := u.Update()
	require.NoError(t, err)
	require.Equal(t, UpdateRejected, result)

	got, err := db.Reference(name)
	require.NoError(t, err)
	require.Equal(t, old, got.Hash(), "rejected update must not change the ref")
}

func TestRefUpdateRejectsCurrentBranch(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	old := mustHexRef(t, "5555555555555555555555555555555555555555")
	new := mustHexRef(t, "6666666666666666666666666666666666666666")
	name := plumbing.ReferenceName("refs/heads/master")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(name, old)))
	require.NoError(t, db.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, name)))

	u := db.NewUpdate(name)
	u.SetNewObjectID(new)
	result, err := u.Update()
	require.NoError(t, err)
	require.Equal(t, UpdateRejectedCurrentBranch, result)
}

func TestRefUpdateFastForwardViaChecker(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	old := mustHexRef(t, "7777777777777777777777777777777777777777")
	newHash := mustHexRef(t, "8888888888888888888888888888888888888888")
	name := plumbing.ReferenceName("refs/heads/master")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(name, old)))

	u := db.NewUpdate(name)
	u.SetNewObjectID(newHash)
	u.SetReachabilityChecker(func(o, n plumbing.Hash) (bool, error) {
		require.Equal(t, old, o)
		require.Equal(t, newHash, n)
		return true, nil
	})

	result, err := u.Update()
	require.NoError(t, err)
	require.Equal(t, UpdateFastForward, result)

	got, err := db.Reference(name)
	require.NoError(t, err)
	require.Equal(t, newHash, got.Hash())
}

func TestRefUpdateForced(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	old := mustHexRef(t, "9999999999999999999999999999999999999999")
	newHash := mustHexRef(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	name := plumbing.ReferenceName("refs/heads/master")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(name, old)))

	u := db.NewUpdate(name)
	u.SetNewObjectID(newHash)
	u.SetForceUpdate(true)
	result, err := u.Update()
	require.NoError(t, err)
	require.Equal(t, UpdateForced, result)

	got, err := db.Reference(name)
	require.NoError(t, err)
	require.Equal(t, newHash, got.Hash())
}

func TestRefUpdateExpectedOldMismatch(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	actual := mustHexRef(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	expected := mustHexRef(t, "cccccccccccccccccccccccccccccccccccccccc")
	newHash := mustHexRef(t, "dddddddddddddddddddddddddddddddddddddddd")
	name := plumbing.ReferenceName("refs/heads/master")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(name, actual)))

	u := db.NewUpdate(name)
	u.SetNewObjectID(newHash)
	u.SetExpectedOldObjectID(expected)
	result, err := u.Update()
	require.ErrorIs(t, err, ErrReferenceHasChanged)
	require.Equal(t, UpdateLockFailure, result)
}

func TestCheckAndSetReferenceRequiresAbsence(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	name := plumbing.ReferenceName("refs/heads/master")
	ref := plumbing.NewHashReference(name, h)

	require.NoError(t, db.CheckAndSetReference(ref, nil))

	other := mustHexRef(t, "ffffffffffffffffffffffffffffffffffffffff")
	require.ErrorIs(t, db.CheckAndSetReference(plumbing.NewHashReference(name, other), nil), ErrReferenceHasChanged)
}

func TestRemoveReference(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	h := mustHexRef(t, "1234567890123456789012345678901234567890")
	name := plumbing.ReferenceName("refs/heads/master")
	require.NoError(t, db.SetReference(plumbing.NewHashReference(name, h)))

	require.NoError(t, db.RemoveReference(name))
	_, err := db.Reference(name)
	require.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestRemoveReferenceMissingIsNoop(t *testing.T) {
	db := NewRefDatabase(memfs.New())
	require.NoError(t, db.RemoveReference(plumbing.ReferenceName("refs/heads/nope")))
}

func TestUpdateResultString(t *testing.T) {
	require.Equal(t, "new", UpdateNew.String())
	require.Equal(t, "fast-forward", UpdateFastForward.String())
	require.Equal(t, "forced", UpdateForced.String())
	require.Equal(t, "no-change", UpdateNoChange.String())
	require.Equal(t, "rejected", UpdateRejected.String())
	require.Equal(t, "rejected-current-branch", UpdateRejectedCurrentBranch.String())
	require.Equal(t, "lock-failure", UpdateLockFailure.String())
	require.Equal(t, "io-failure", UpdateIOFailure.String())
	require.Equal(t, "unknown", UpdateUnknown.String())
}
