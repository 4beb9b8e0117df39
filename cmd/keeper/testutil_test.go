package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/4thel00z/keeper/internal"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// diskRepo is a repository on disk that GIT_DIR points at for the test.
type diskRepo struct {
	t     *testing.T
	repo  *git.Repository
	loc   internal.Location
	clock time.Time
	tree  plumbing.Hash
}

func newDiskRepo(t *testing.T) *diskRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))))

	obj := repo.Storer.NewEncodedObject()
	require.NoError(t, (&object.Tree{}).Encode(obj))
	tree, err := repo.Storer.SetEncodedObject(obj)
	require.NoError(t, err)

	loc := internal.Location{WorkTree: dir, GitDir: filepath.Join(dir, ".git")}
	t.Setenv("GIT_DIR", loc.GitDir)
	t.Setenv("GIT_WORK_TREE", loc.WorkTree)
	t.Setenv("KEEPER_LOG_FILE", "")
	t.Setenv("KEEPER_LOG_LEVEL", "")

	return &diskRepo{
		t:     t,
		repo:  repo,
		loc:   loc,
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		tree:  tree,
	}
}

func (r *diskRepo) commit(message string, parents ...internal.NonZeroOid) internal.NonZeroOid {
	r.t.Helper()
	r.clock = r.clock.Add(time.Minute)
	sig := object.Signature{Name: "Test", Email: "test@example.com", When: r.clock}
	c := &object.Commit{Author: sig, Committer: sig, Message: message + "\n", TreeHash: r.tree}
	for _, p := range parents {
		c.ParentHashes = append(c.ParentHashes, p.Hash())
	}

	obj := r.repo.Storer.NewEncodedObject()
	require.NoError(r.t, c.Encode(obj))
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	require.NoError(r.t, err)
	oid, err := internal.NewNonZeroOid(hash)
	require.NoError(r.t, err)
	return oid
}

func (r *diskRepo) branch(name string, oid internal.NonZeroOid) {
	r.t.Helper()
	require.NoError(r.t, r.repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), oid.Hash())))
}

func (r *diskRepo) checkout(name string) {
	r.t.Helper()
	require.NoError(r.t, r.repo.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(name))))
}

func newTestApp() *app {
	return newAppWith(
		internal.NewLocationResolver(),
		internal.NopLogger(),
		internal.NewSmartlogRenderer(internal.PlainSmartlogStyles()),
	)
}

// run executes one keeper invocation and returns its stdout and stderr.
func run(t *testing.T, a *app, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd("test", a)
	var out, errOut bytes.Buffer
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	if stdin != nil {
		root.SetIn(stdin)
	}
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, a *app, stdin io.Reader, args ...string) string {
	t.Helper()
	out, errOut, err := run(t, a, stdin, args...)
	require.NoError(t, err, "keeper %v: %s", args, errOut)
	return out
}
