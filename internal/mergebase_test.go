package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type countingMergeBaser struct {
	base  MaybeZeroOid
	err   error
	calls int
}

func (m *countingMergeBaser) MergeBase(ctx context.Context, a, b NonZeroOid) (MaybeZeroOid, error) {
	m.calls++
	return m.base, m.err
}

func TestMergeBaseDB_GetMiss(t *testing.T) {
	mb := NewMergeBaseDB(newTestDB(t))

	_, found, err := mb.Get(context.Background(), testOid(1), testOid(2))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMergeBaseDB_PutIdempotentAndSymmetric(t *testing.T) {
	ctx := context.Background()
	mb := NewMergeBaseDB(newTestDB(t))
	a, b, base := testOid(1), testOid(2), testOid(3).Maybe()

	require.NoError(t, mb.Put(ctx, a, b, base))
	require.NoError(t, mb.Put(ctx, a, b, base))

	got, found, err := mb.Get(ctx, a, b)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, base, got)

	got, found, err = mb.Get(ctx, b, a)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, base, got)
}

func TestMergeBaseDB_NoCommonAncestor(t *testing.T) {
	ctx := context.Background()
	mb := NewMergeBaseDB(newTestDB(t))

	require.NoError(t, mb.Put(ctx, testOid(1), testOid(2), ZeroOid))

	got, found, err := mb.Get(ctx, testOid(2), testOid(1))
	require.NoError(t, err)
	assert.True(t, found, "a stored zero must be distinguishable from a miss")
	assert.True(t, got.IsZero())
}

func TestMergeBaseDB_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, NewMergeBaseDB(db).Put(ctx, testOid(5), testOid(4), testOid(1).Maybe()))

	got, found, err := NewMergeBaseDB(db).Get(ctx, testOid(4), testOid(5))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testOid(1).Maybe(), got)
}

func TestGetMergeBase_ComputesOnce(t *testing.T) {
	ctx := context.Background()
	mb := NewMergeBaseDB(newTestDB(t))
	repo := &countingMergeBaser{base: testOid(9).Maybe()}

	for range 3 {
		got, err := GetMergeBase(ctx, repo, mb, testOid(1), testOid(2))
		require.NoError(t, err)
		assert.Equal(t, testOid(9).Maybe(), got)
	}
	_, err := GetMergeBase(ctx, repo, mb, testOid(2), testOid(1))
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
}

func TestGetMergeBase_RepositoryError(t *testing.T) {
	ctx := context.Background()
	mb := NewMergeBaseDB(newTestDB(t))
	boom := errors.New("boom")

	_, err := GetMergeBase(ctx, &countingMergeBaser{err: boom}, mb, testOid(1), testOid(2))
	require.ErrorIs(t, err, boom)

	_, found, err := mb.Get(ctx, testOid(1), testOid(2))
	require.NoError(t, err)
	assert.False(t, found, "failures must not be cached")
}

func TestIsAncestor(t *testing.T) {
	ctx := context.Background()
	mb := NewMergeBaseDB(newTestDB(t))
	repo := &countingMergeBaser{base: testOid(1).Maybe()}

	ok, err := IsAncestor(ctx, repo, mb, testOid(1), testOid(2))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsAncestor(ctx, repo, mb, testOid(3), testOid(2))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsAncestor(ctx, repo, mb, testOid(4), testOid(4))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMergeBaseDB_SymmetryProperty(t *testing.T) {
	db := newTestDB(t)

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		mb := NewMergeBaseDB(db)
		a := testOid(rapid.IntRange(0, 50).Draw(t, "a"))
		b := testOid(rapid.IntRange(0, 50).Draw(t, "b"))
		base := MaybeZeroOid{}
		if rapid.Bool().Draw(t, "hasBase") {
			base = testOid(rapid.IntRange(0, 50).Draw(t, "base")).Maybe()
		}

		require.NoError(t, mb.Put(ctx, a, b, base))
		require.NoError(t, mb.Put(ctx, a, b, base))

		ab, foundAB, err := mb.Get(ctx, a, b)
		require.NoError(t, err)
		ba, foundBA, err := NewMergeBaseDB(db).Get(ctx, b, a)
		require.NoError(t, err)

		if !foundAB || !foundBA {
			t.Fatalf("entry for (%s, %s) not found", a.Short(), b.Short())
		}
		if ab != base || ba != base {
			t.Fatalf("got %s and %s, want %s", ab, ba, base)
		}
	})
}
