package internal

import (
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNonZeroOid(t *testing.T) {
	hex := "0123456789abcdef0123456789abcdef01234567"

	oid, err := ParseNonZeroOid(hex)
	require.NoError(t, err)
	assert.Equal(t, hex, oid.String())
	assert.Equal(t, "0123456", oid.Short())
}

func TestParseNonZeroOid_RejectsZero(t *testing.T) {
	_, err := ParseNonZeroOid(strings.Repeat("0", 40))
	assert.ErrorIs(t, err, ErrZeroOid)
}

func TestParseOid_Malformed(t *testing.T) {
	for _, s := range []string{"", "abc", strings.Repeat("g", 40), strings.Repeat("a", 41)} {
		_, err := ParseNonZeroOid(s)
		assert.ErrorIs(t, err, ErrInvalidOid, s)

		_, err = ParseMaybeZeroOid(s)
		assert.ErrorIs(t, err, ErrInvalidOid, s)
	}
}

func TestMaybeZeroOid(t *testing.T) {
	zero, err := ParseMaybeZeroOid(strings.Repeat("0", 40))
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.Equal(t, ZeroOid, zero)

	_, ok := zero.NonZero()
	assert.False(t, ok)

	oid := testOid(7)
	back, ok := oid.Maybe().NonZero()
	require.True(t, ok)
	assert.Equal(t, oid, back)
}

func TestNewNonZeroOid(t *testing.T) {
	_, err := NewNonZeroOid(plumbing.ZeroHash)
	assert.ErrorIs(t, err, ErrZeroOid)

	oid, err := NewNonZeroOid(testOid(1).Hash())
	require.NoError(t, err)
	assert.Equal(t, testOid(1), oid)
}

func TestNonZeroOidLess(t *testing.T) {
	a, b := testOid(1), testOid(2)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}
