package internal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "keeper.db"), NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testOid builds a deterministic non-zero oid from n.
func testOid(n int) NonZeroOid {
	oid, err := ParseNonZeroOid(fmt.Sprintf("%040x", n+1))
	if err != nil {
		panic(err)
	}
	return oid
}

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

// testRepo is an in-memory repository whose commits all share an empty tree.
type testRepo struct {
	t     tb
	repo  *git.Repository
	clock time.Time
	tree  plumbing.Hash
}

func newTestRepo(t tb) *testRepo {
	t.Helper()
	repo, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	return wrapTestRepo(t, repo)
}

// newDiskTestRepo initializes a repository with a worktree under a temp dir.
func newDiskTestRepo(t *testing.T) (*testRepo, Location) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return wrapTestRepo(t, repo), Location{WorkTree: dir, GitDir: filepath.Join(dir, ".git")}
}

func wrapTestRepo(t tb, repo *git.Repository) *testRepo {
	t.Helper()
	require.NoError(t, repo.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))))

	obj := repo.Storer.NewEncodedObject()
	require.NoError(t, (&object.Tree{}).Encode(obj))
	tree, err := repo.Storer.SetEncodedObject(obj)
	require.NoError(t, err)

	return &testRepo{t: t, repo: repo, clock: testEpoch, tree: tree}
}

func (r *testRepo) commit(message string, parents ...NonZeroOid) NonZeroOid {
	r.t.Helper()
	r.clock = r.clock.Add(time.Minute)
	sig := object.Signature{Name: "Test", Email: "test@example.com", When: r.clock}

	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message + "\n",
		TreeHash:  r.tree,
	}
	for _, p := range parents {
		c.ParentHashes = append(c.ParentHashes, p.Hash())
	}

	obj := r.repo.Storer.NewEncodedObject()
	require.NoError(r.t, c.Encode(obj))
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	require.NoError(r.t, err)

	oid, err := NewNonZeroOid(hash)
	require.NoError(r.t, err)
	return oid
}

func (r *testRepo) branch(name string, oid NonZeroOid) {
	r.t.Helper()
	require.NoError(r.t, r.repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), oid.Hash())))
}

func (r *testRepo) deleteBranch(name string) {
	r.t.Helper()
	require.NoError(r.t, r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)))
}

func (r *testRepo) checkout(name string) {
	r.t.Helper()
	require.NoError(r.t, r.repo.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(name))))
}

func (r *testRepo) detach(oid NonZeroOid) {
	r.t.Helper()
	require.NoError(r.t, r.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, oid.Hash())))
}

func (r *testRepo) git() *GitRepository {
	return NewGitRepository(r.repo, nil, "main")
}

// testEnv opens a fresh Env over the same database and repository on every
// call, the way separate hook processes would.
type testEnv struct {
	t      *testing.T
	repo   *testRepo
	loc    Location
	dbPath string
	cfg    *Config
	now    time.Time
	// rebasing makes the repository report a rebase in progress.
	rebasing bool
}

type rebasingRepo struct{ *GitRepository }

func (rebasingRepo) IsRebaseUnderway(context.Context) (bool, error) { return true, nil }

func newTestEnv(t *testing.T, repo *testRepo) *testEnv {
	t.Helper()
	gitDir := filepath.Join(t.TempDir(), ".git")
	loc := Location{WorkTree: filepath.Dir(gitDir), GitDir: gitDir}
	return &testEnv{
		t:      t,
		repo:   repo,
		loc:    loc,
		dbPath: filepath.Join(t.TempDir(), "keeper.db"),
		cfg:    DefaultConfig(),
		now:    testEpoch,
	}
}

func (te *testEnv) open(ctx context.Context) (*Env, error) {
	db, err := OpenDB(te.dbPath, NopLogger())
	if err != nil {
		return nil, err
	}
	var repo Repository = te.repo.git()
	if te.rebasing {
		repo = rebasingRepo{te.repo.git()}
	}
	env := NewEnv(te.loc, te.cfg, NopLogger(), db, repo)
	env.Now = func() time.Time { return te.now }
	return env, nil
}

func (te *testEnv) env() *Env {
	te.t.Helper()
	env, err := te.open(context.Background())
	require.NoError(te.t, err)
	te.t.Cleanup(func() { _ = env.Close() })
	return env
}

// record appends events built by mk under a freshly allocated transaction.
func (te *testEnv) record(command string, mk func(EventMeta) []Event) EventTransactionID {
	te.t.Helper()
	ctx := context.Background()
	env := te.env()
	te.now = te.now.Add(time.Second)
	meta, err := env.NewTransaction(ctx, command)
	require.NoError(te.t, err)
	require.NoError(te.t, env.EventLog.AddEvents(ctx, mk(meta)))
	return meta.Tx
}

func (te *testEnv) recordCommits(oids ...NonZeroOid) EventTransactionID {
	return te.record("hook-post-commit", func(meta EventMeta) []Event {
		var events []Event
		for _, oid := range oids {
			events = append(events, CommitEvent{EventMeta: meta, Oid: oid})
		}
		return events
	})
}

func (te *testEnv) events() []Event {
	te.t.Helper()
	events, err := te.env().EventLog.AllEvents(context.Background())
	require.NoError(te.t, err)
	return events
}
