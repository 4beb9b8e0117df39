package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"
)

// MergeBaseDB memoises pairwise merge-base queries.
//
// Entries are never invalidated. That is only sound because a merge base is a
// pure function of two content-addressed commits; do not store anything here
// that depends on mutable repository state such as refs.
type MergeBaseDB struct {
	db  *sql.DB
	mem *cache.Cache
}

func NewMergeBaseDB(db *sql.DB) *MergeBaseDB {
	return &MergeBaseDB{
		db:  db,
		mem: cache.New(cache.NoExpiration, 0),
	}
}

func mergeBaseKey(a, b NonZeroOid) (NonZeroOid, NonZeroOid) {
	if b.Less(a) {
		return b, a
	}
	return a, b
}

// Get returns the cached merge base of a and b in either order. found is false
// on a miss; a found zero oid means the commits share no ancestor.
func (m *MergeBaseDB) Get(ctx context.Context, a, b NonZeroOid) (MaybeZeroOid, bool, error) {
	lhs, rhs := mergeBaseKey(a, b)
	memKey := lhs.String() + rhs.String()
	if v, ok := m.mem.Get(memKey); ok {
		return v.(MaybeZeroOid), true, nil
	}

	var base sql.NullString
	err := m.db.QueryRowContext(ctx,
		`SELECT merge_base_oid FROM merge_base_oids WHERE lhs_oid = ? AND rhs_oid = ?`,
		lhs.String(), rhs.String(),
	).Scan(&base)
	if errors.Is(err, sql.ErrNoRows) {
		return MaybeZeroOid{}, false, nil
	}
	if err != nil {
		return MaybeZeroOid{}, false, fmt.Errorf("query merge base: %w", err)
	}

	result := ZeroOid
	if base.Valid {
		result, err = ParseMaybeZeroOid(base.String)
		if err != nil {
			return MaybeZeroOid{}, false, fmt.Errorf("decode merge base: %w", err)
		}
	}
	m.mem.SetDefault(memKey, result)
	return result, true, nil
}

// Put stores a merge base. Writing the same key twice, from any process, is harmless.
func (m *MergeBaseDB) Put(ctx context.Context, a, b NonZeroOid, base MaybeZeroOid) error {
	lhs, rhs := mergeBaseKey(a, b)

	var stored sql.NullString
	if !base.IsZero() {
		stored = sql.NullString{String: base.String(), Valid: true}
	}
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO merge_base_oids (lhs_oid, rhs_oid, merge_base_oid) VALUES (?, ?, ?)`,
		lhs.String(), rhs.String(), stored,
	)
	if err != nil {
		return fmt.Errorf("store merge base: %w", err)
	}
	m.mem.SetDefault(lhs.String()+rhs.String(), base)
	return nil
}

// MergeBaser computes merge bases; Repository satisfies it.
type MergeBaser interface {
	MergeBase(ctx context.Context, a, b NonZeroOid) (MaybeZeroOid, error)
}

// GetMergeBase answers from the cache, computing and storing the result on a miss.
func GetMergeBase(ctx context.Context, repo MergeBaser, mb *MergeBaseDB, a, b NonZeroOid) (MaybeZeroOid, error) {
	if base, ok, err := mb.Get(ctx, a, b); err != nil {
		return MaybeZeroOid{}, err
	} else if ok {
		return base, nil
	}

	base, err := repo.MergeBase(ctx, a, b)
	if err != nil {
		return MaybeZeroOid{}, fmt.Errorf("compute merge base of %s and %s: %w", a.Short(), b.Short(), err)
	}
	if err := mb.Put(ctx, a, b, base); err != nil {
		return MaybeZeroOid{}, err
	}
	return base, nil
}

// IsAncestor reports whether ancestor is reachable from (or equal to) descendant.
func IsAncestor(ctx context.Context, repo MergeBaser, mb *MergeBaseDB, ancestor, descendant NonZeroOid) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	base, err := GetMergeBase(ctx, repo, mb, ancestor, descendant)
	if err != nil {
		return false, err
	}
	return base == ancestor.Maybe(), nil
}
