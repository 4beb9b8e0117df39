package internal

import (
	"bytes"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// NonZeroOid identifies an object that exists (or existed) in the object store.
// The zero value is invalid; construct it with ParseNonZeroOid or NewNonZeroOid.
type NonZeroOid struct {
	hash plumbing.Hash
}

// MaybeZeroOid is an object id that may be the all-zero sentinel Git uses for
// "no object", e.g. the old side of a created ref or the new side of a deleted one.
type MaybeZeroOid struct {
	hash plumbing.Hash
}

// ZeroOid is the all-zero sentinel.
var ZeroOid = MaybeZeroOid{}

func NewNonZeroOid(h plumbing.Hash) (NonZeroOid, error) {
	if h.IsZero() {
		return NonZeroOid{}, ErrZeroOid
	}
	return NonZeroOid{hash: h}, nil
}

func ParseNonZeroOid(s string) (NonZeroOid, error) {
	h, err := parseHash(s)
	if err != nil {
		return NonZeroOid{}, err
	}
	if h.IsZero() {
		return NonZeroOid{}, fmt.Errorf("%w: %q", ErrZeroOid, s)
	}
	return NonZeroOid{hash: h}, nil
}

func ParseMaybeZeroOid(s string) (MaybeZeroOid, error) {
	h, err := parseHash(s)
	if err != nil {
		return MaybeZeroOid{}, err
	}
	return MaybeZeroOid{hash: h}, nil
}

func parseHash(s string) (plumbing.Hash, error) {
	if !plumbing.IsHash(s) {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrInvalidOid, s)
	}
	return plumbing.NewHash(s), nil
}

func (o NonZeroOid) Hash() plumbing.Hash { return o.hash }
func (o NonZeroOid) String() string      { return o.hash.String() }
func (o NonZeroOid) Short() string       { return o.hash.String()[:7] }

// Maybe widens the oid; it never loses information.
func (o NonZeroOid) Maybe() MaybeZeroOid { return MaybeZeroOid{hash: o.hash} }

// Less orders oids bytewise. Used to normalise unordered pairs.
func (o NonZeroOid) Less(other NonZeroOid) bool {
	return bytes.Compare(o.hash[:], other.hash[:]) < 0
}

func (o MaybeZeroOid) IsZero() bool        { return o.hash.IsZero() }
func (o MaybeZeroOid) Hash() plumbing.Hash { return o.hash }
func (o MaybeZeroOid) String() string      { return o.hash.String() }

// NonZero narrows the oid, reporting false for the zero sentinel.
func (o MaybeZeroOid) NonZero() (NonZeroOid, bool) {
	if o.hash.IsZero() {
		return NonZeroOid{}, false
	}
	return NonZeroOid{hash: o.hash}, true
}
