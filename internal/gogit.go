package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const DefaultMainBranch = "main"

// GitRepository implements Repository over go-git.
type GitRepository struct {
	repo       *git.Repository
	gitDir     billy.Filesystem
	mainBranch string
}

var _ Repository = (*GitRepository)(nil)

// OpenGitRepository opens the repository at loc without touching its worktree.
func OpenGitRepository(loc Location, mainBranch string) (*GitRepository, error) {
	if _, err := os.Stat(loc.GitDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotGitRepository, loc.GitDir)
	}

	fs := osfs.New(loc.CommonDir())
	storage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())

	var wt billy.Filesystem
	if loc.WorkTree != "" {
		wt = osfs.New(loc.WorkTree)
	}

	repo, err := git.Open(storage, wt)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &GitRepository{
		repo:       repo,
		gitDir:     osfs.New(loc.GitDir),
		mainBranch: mainBranchOrDefault(mainBranch),
	}, nil
}

// NewGitRepository wraps an already open repository. gitDir may be nil for
// in-memory repositories, in which case no rebase is ever reported.
func NewGitRepository(repo *git.Repository, gitDir billy.Filesystem, mainBranch string) *GitRepository {
	return &GitRepository{
		repo:       repo,
		gitDir:     gitDir,
		mainBranch: mainBranchOrDefault(mainBranch),
	}
}

func mainBranchOrDefault(name string) string {
	name = strings.TrimPrefix(name, "refs/heads/")
	if name == "" {
		return DefaultMainBranch
	}
	return name
}

func (r *GitRepository) MainBranchName() string { return r.mainBranch }

func (r *GitRepository) FindCommit(ctx context.Context, oid NonZeroOid) (*Commit, error) {
	c, err := r.repo.CommitObject(oid.Hash())
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", oid.Short(), err)
	}
	return toCommit(c), nil
}

func (r *GitRepository) HeadInfo(ctx context.Context) (HeadInfo, error) {
	raw, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return HeadInfo{}, fmt.Errorf("read HEAD: %w", err)
	}

	var info HeadInfo
	if raw.Type() == plumbing.SymbolicReference {
		info.ReferenceName = raw.Target().String()
	}

	resolved, err := r.repo.Reference(plumbing.HEAD, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return info, nil
	}
	if err != nil {
		return HeadInfo{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	info.Oid = MaybeZeroOid{hash: resolved.Hash()}
	return info, nil
}

func (r *GitRepository) MainBranchOid(ctx context.Context) (NonZeroOid, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(r.mainBranch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return NonZeroOid{}, fmt.Errorf("%w: %s", ErrMainBranchNotFound, r.mainBranch)
	}
	if err != nil {
		return NonZeroOid{}, fmt.Errorf("resolve main branch: %w", err)
	}
	return NewNonZeroOid(ref.Hash())
}

func (r *GitRepository) BranchOidToNames(ctx context.Context) (map[NonZeroOid][]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	names := make(map[NonZeroOid][]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if ref.Type() == plumbing.SymbolicReference {
			resolved, err := r.repo.Reference(ref.Name(), true)
			if err != nil {
				return nil
			}
			hash = resolved.Hash()
		}
		oid, err := NewNonZeroOid(hash)
		if err != nil {
			return nil
		}
		names[oid] = append(names[oid], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk branches: %w", err)
	}

	for _, n := range names {
		sort.Strings(n)
	}
	return names, nil
}

func (r *GitRepository) MergeBase(ctx context.Context, a, b NonZeroOid) (MaybeZeroOid, error) {
	lhs, err := r.repo.CommitObject(a.Hash())
	if err != nil {
		return MaybeZeroOid{}, fmt.Errorf("read commit %s: %w", a.Short(), err)
	}
	rhs, err := r.repo.CommitObject(b.Hash())
	if err != nil {
		return MaybeZeroOid{}, fmt.Errorf("read commit %s: %w", b.Short(), err)
	}

	bases, err := lhs.MergeBase(rhs)
	if err != nil {
		return MaybeZeroOid{}, fmt.Errorf("merge base: %w", err)
	}
	if len(bases) == 0 {
		return ZeroOid, nil
	}

	// Criss-cross histories have several best bases; pick one stably.
	best := bases[0].Hash
	for _, c := range bases[1:] {
		if c.Hash.String() < best.String() {
			best = c.Hash
		}
	}
	return MaybeZeroOid{hash: best}, nil
}

// ResolveRevision accepts anything git rev-parse would for a commit: oids,
// branch names, HEAD~2 and the like.
func (r *GitRepository) ResolveRevision(ctx context.Context, rev string) (NonZeroOid, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return NonZeroOid{}, fmt.Errorf("%w: %s", ErrCommitNotFound, rev)
	}
	return NewNonZeroOid(*hash)
}

func (r *GitRepository) IsRebaseUnderway(ctx context.Context) (bool, error) {
	if r.gitDir == nil {
		return false, nil
	}
	for _, dir := range []string{"rebase-merge", "rebase-apply"} {
		_, err := r.gitDir.Stat(dir)
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("stat %s: %w", dir, err)
		}
	}
	return false, nil
}

func toCommit(c *object.Commit) *Commit {
	parents := make([]NonZeroOid, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		if oid, err := NewNonZeroOid(p); err == nil {
			parents = append(parents, oid)
		}
	}

	summary, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return &Commit{
		Oid:        NonZeroOid{hash: c.Hash},
		ParentOids: parents,
		Summary:    summary,
		Author:     c.Author.Name,
		Time:       c.Committer.When,
	}
}
