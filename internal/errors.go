package internal

import "errors"

var (
	ErrInvalidOid             = errors.New("invalid object id")
	ErrZeroOid                = errors.New("object id is zero")
	ErrCommitNotFound         = errors.New("commit not found")
	ErrMainBranchNotFound     = errors.New("main branch not found")
	ErrCorruptEventLog        = errors.New("corrupt event log")
	ErrUnknownTransaction     = errors.New("unknown event transaction")
	ErrInconsistentRepository = errors.New("BUG: repository state inconsistent with event log")
	ErrNotInitialized         = errors.New("keeper not initialized in this repository")
	ErrNotGitRepository       = errors.New("not a git repository (no .git found)")
)
