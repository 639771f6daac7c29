package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) Hash {
	t.Helper()
	h, err := FromHex(s)
	require.NoError(t, err)
	return h
}

func TestFromHexRoundTrip(t *testing.T) {
	s := "49322bb17d3acc9146f98c97d078513228bbf3c0"
	h := mustHex(t, s)
	require.Equal(t, s, h.String())
}

func TestFromHexRejectsWrongLengthAndNonHex(t *testing.T) {
	_, err := FromHex("abc")
	require.ErrorIs(t, err, ErrInvalidHash)

	_, err = FromHex("zz322bb17d3acc9146f98c97d078513228bbf3c0")
	require.ErrorIs(t, err, ErrInvalidHash)
}

func TestIsZero(t *testing.T) {
	var h Hash
	require.True(t, h.IsZero())

	h = mustHex(t, "49322bb17d3acc9146f98c97d078513228bbf3c0")
	require.False(t, h.IsZero())
}

func TestSum32UsesLeadingFourBytes(t *testing.T) {
	h := mustHex(t, "aabbccdd7d3acc9146f98c97d078513228bbf3c0")
	require.Equal(t, uint32(0xaabbccdd), h.Sum32())
}

func TestSortOrdersAscending(t *testing.T) {
	a := mustHex(t, "1000000000000000000000000000000000000000")
	b := mustHex(t, "2000000000000000000000000000000000000000")
	c := mustHex(t, "3000000000000000000000000000000000000000")

	s := []Hash{c, a, b}
	Sort(s)
	require.Equal(t, []Hash{a, b, c}, s)
}

func TestAbbreviatePrefixCompare(t *testing.T) {
	full := mustHex(t, "49322bb17d3acc9146f98c97d078513228bbf3c0")

	for _, n := range []int{2, 4, 7, 40} {
		a, err := AbbreviateHash(full, n)
		require.NoError(t, err)
		require.Equal(t, 0, a.PrefixCompare(full), "nibbles=%d", n)
		require.Equal(t, n, a.Len())
	}

	other := mustHex(t, "49322ba000000000000000000000000000000000")
	a, err := AbbreviateHash(full, 7)
	require.NoError(t, err)
	require.NotEqual(t, 0, a.PrefixCompare(other))
}

func TestAbbreviateOddNibbleCount(t *testing.T) {
	a, err := Abbreviate("493")
	require.NoError(t, err)
	require.Equal(t, 3, a.Len())
	require.Equal(t, "493", a.String())

	full := mustHex(t, "49322bb17d3acc9146f98c97d078513228bbf3c0")
	require.Equal(t, 0, a.PrefixCompare(full))

	notMatching := mustHex(t, "49422bb17d3acc9146f98c97d078513228bbf3c0")
	require.NotEqual(t, 0, a.PrefixCompare(notMatching))
}

func TestAbbreviateRejectsInvalidLength(t *testing.T) {
	_, err := Abbreviate("a")
	require.ErrorIs(t, err, ErrInvalidLength)

	_, err = AbbreviateHash(ZeroHash, 1)
	require.ErrorIs(t, err, ErrInvalidLength)

	_, err = AbbreviateHash(ZeroHash, 41)
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestHashStartsWith(t *testing.T) {
	full := mustHex(t, "49322bb17d3acc9146f98c97d078513228bbf3c0")
	a, err := Abbreviate("49322b")
	require.NoError(t, err)
	require.True(t, full.StartsWith(a))

	other, err := Abbreviate("deadbe")
	require.NoError(t, err)
	require.False(t, full.StartsWith(other))
}
