package internal

import (
	"context"
	"time"
)

// Commit is the subset of a Git commit the graph builder and renderers need.
type Commit struct {
	Oid        NonZeroOid
	ParentOids []NonZeroOid
	Summary    string
	Author     string
	Time       time.Time
}

type HeadInfo struct {
	// Oid is zero on an unborn branch.
	Oid MaybeZeroOid
	// ReferenceName is the branch HEAD points at, empty when detached.
	ReferenceName string
}

func (h HeadInfo) IsDetached() bool { return h.ReferenceName == "" }

// Repository is the live view of the Git repository the core consults.
type Repository interface {
	MergeBaser

	// FindCommit returns nil, nil when the object does not exist.
	FindCommit(ctx context.Context, oid NonZeroOid) (*Commit, error)
	HeadInfo(ctx context.Context) (HeadInfo, error)
	MainBranchOid(ctx context.Context) (NonZeroOid, error)
	// BranchOidToNames maps each branch tip to its short branch names, sorted.
	BranchOidToNames(ctx context.Context) (map[NonZeroOid][]string, error)
	IsRebaseUnderway(ctx context.Context) (bool, error)
}
