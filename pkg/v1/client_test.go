package v1

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/4thel00z/keeper/internal"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type clientFixture struct {
	dir    string
	repo   *git.Repository
	client *Client
	clock  time.Time
}

func setupClientTest(t *testing.T) *clientFixture {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GIT_DIR", "")
	t.Setenv("GIT_WORK_TREE", "")

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init git: %v", err)
	}
	if err := repo.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		t.Fatalf("set HEAD: %v", err)
	}

	f := &clientFixture{dir: dir, repo: repo, clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	f.commit(t, "initial")

	t.Chdir(dir)
	open := func(loc internal.Location, cfg *internal.Config) (*internal.Env, error) {
		return internal.OpenEnv(loc, cfg, internal.NopLogger())
	}
	if _, err := internal.NewInitUseCase(internal.NewLocationResolver(), open).Execute(
		context.Background(), internal.InitInput{NoHooks: true}); err != nil {
		t.Fatalf("init keeper: %v", err)
	}

	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	client, err := New(WithRepository(sub))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	f.client = client
	return f
}

// commit creates an empty commit on the current branch and records it the
// way the post-commit hook would.
func (f *clientFixture) commit(t *testing.T, message string) string {
	t.Helper()
	wt, err := f.repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	f.clock = f.clock.Add(time.Minute)
	hash, err := wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "Test", Email: "test@example.com", When: f.clock},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if f.client != nil {
		open := internal.NewEnvOpenerAt(internal.NewLocationResolver(), f.dir, internal.NopLogger())
		if _, err := internal.NewPostCommitUseCase(open).Execute(context.Background()); err != nil {
			t.Fatalf("post-commit: %v", err)
		}
	}
	return hash.String()
}

func (f *clientFixture) branch(t *testing.T, name string) {
	t.Helper()
	head, err := f.repo.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if err := f.repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())); err != nil {
		t.Fatalf("branch: %v", err)
	}
	if err := f.repo.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(name))); err != nil {
		t.Fatalf("checkout: %v", err)
	}
}

func TestClientSmartlog(t *testing.T) {
	f := setupClientTest(t)
	ctx := context.Background()

	f.branch(t, "feature")
	oid := f.commit(t, "add feature")

	commits, err := f.client.Smartlog(ctx)
	if err != nil {
		t.Fatalf("smartlog: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}

	tip := commits[1]
	if tip.Oid != oid {
		t.Errorf("tip oid = %s, want %s", tip.Oid, oid)
	}
	if tip.Summary != "add feature" {
		t.Errorf("summary = %q, want %q", tip.Summary, "add feature")
	}
	if !tip.IsHead || tip.IsMain {
		t.Errorf("tip head=%v main=%v, want head and not main", tip.IsHead, tip.IsMain)
	}
	if len(tip.Branches) != 1 || tip.Branches[0] != "feature" {
		t.Errorf("branches = %v, want [feature]", tip.Branches)
	}
	if !commits[0].IsMain {
		t.Error("first commit should be the main branch tip")
	}
}

func TestClientRenderSmartlog(t *testing.T) {
	f := setupClientTest(t)

	f.branch(t, "feature")
	oid := f.commit(t, "add feature")

	out, err := f.client.RenderSmartlog(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "@ "+oid[:7]+" (feature) add feature") {
		t.Errorf("render missing feature line:\n%s", out)
	}
}

func TestClientHideAndUnhide(t *testing.T) {
	f := setupClientTest(t)
	ctx := context.Background()

	f.branch(t, "feature")
	first := f.commit(t, "first")
	f.commit(t, "second")

	// Move HEAD back to main so it no longer protects the stack.
	if err := f.repo.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		t.Fatalf("checkout main: %v", err)
	}
	if err := f.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName("feature")); err != nil {
		t.Fatalf("delete branch: %v", err)
	}

	hidden, err := f.client.Hide(ctx, first[:10])
	if err != nil {
		t.Fatalf("hide: %v", err)
	}
	if len(hidden) != 1 || hidden[0] != first {
		t.Errorf("hidden = %v, want [%s]", hidden, first)
	}

	commits, err := f.client.Smartlog(ctx)
	if err != nil {
		t.Fatalf("smartlog: %v", err)
	}
	for _, c := range commits {
		if c.Oid == first && !c.IsHidden {
			t.Errorf("commit %s should be hidden", first)
		}
	}

	if _, err := f.client.Unhide(ctx, first); err != nil {
		t.Fatalf("unhide: %v", err)
	}
	commits, err = f.client.Smartlog(ctx)
	if err != nil {
		t.Fatalf("smartlog: %v", err)
	}
	found := false
	for _, c := range commits {
		if c.Oid == first {
			found = true
			if c.IsHidden {
				t.Errorf("commit %s should be visible again", first)
			}
		}
	}
	if !found {
		t.Errorf("commit %s missing from smartlog", first)
	}
}

func TestClientTransactions(t *testing.T) {
	f := setupClientTest(t)
	ctx := context.Background()

	f.commit(t, "one")
	f.commit(t, "two")

	txs, err := f.client.Transactions(ctx, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].ID <= txs[1].ID {
		t.Errorf("transactions not newest first: %d, %d", txs[0].ID, txs[1].ID)
	}
	if txs[0].Message != "hook-post-commit" {
		t.Errorf("message = %q, want hook-post-commit", txs[0].Message)
	}
	if len(txs[0].Events) != 1 {
		t.Errorf("got %d events, want 1", len(txs[0].Events))
	}

	limited, err := f.client.Transactions(ctx, 1)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != txs[0].ID {
		t.Errorf("limited = %v, want only tx %d", limited, txs[0].ID)
	}
}

func TestClientSmartlogAt(t *testing.T) {
	f := setupClientTest(t)
	ctx := context.Background()

	f.branch(t, "feature")
	f.commit(t, "one")
	f.commit(t, "two")

	txs, err := f.client.Transactions(ctx, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	oldest := txs[len(txs)-1].ID

	if _, err := f.client.SmartlogAt(ctx, oldest); err != nil {
		t.Fatalf("smartlog at %d: %v", oldest, err)
	}
	if _, err := f.client.SmartlogAt(ctx, 999); err == nil {
		t.Error("expected error for unknown transaction")
	}

	diff, err := f.client.Diff(ctx, txs[0].ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff == "" {
		t.Error("diff of a commit transaction should not be empty")
	}
}

func TestClientNotInitialized(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIT_DIR", "")
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("init git: %v", err)
	}

	client, err := New(WithRepository(dir))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Smartlog(context.Background()); err == nil {
		t.Error("expected error before keeper init")
	}
}
