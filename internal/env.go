package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Env bundles what one keeper invocation works with. Build it once per
// process and pass it down; nothing in the package reads process globals.
type Env struct {
	Location   Location
	Config     *Config
	Logger     *log.Logger
	EventLog   *EventLogDB
	MergeBases *MergeBaseDB
	Repo       Repository
	Now        func() time.Time

	db *sql.DB
}

// EnvOpener opens an Env on demand, so commands that never touch the
// repository (help, version) work outside one.
type EnvOpener func(ctx context.Context) (*Env, error)

func NewEnv(loc Location, cfg *Config, logger *log.Logger, db *sql.DB, repo Repository) *Env {
	return &Env{
		Location:   loc,
		Config:     cfg,
		Logger:     logger,
		EventLog:   NewEventLogDB(db),
		MergeBases: NewMergeBaseDB(db),
		Repo:       repo,
		Now:        time.Now,
		db:         db,
	}
}

// OpenEnv opens the repository and database at loc.
func OpenEnv(loc Location, cfg *Config, logger *log.Logger) (*Env, error) {
	if !loc.IsInitialized() {
		return nil, ErrNotInitialized
	}

	repo, err := OpenGitRepository(loc, cfg.MainBranch)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(loc.DBPath(), logger)
	if err != nil {
		return nil, err
	}
	return NewEnv(loc, cfg, logger, db, repo), nil
}

// NewEnvOpener resolves the repository around the working directory and opens it.
func NewEnvOpener(resolver *LocationResolver, logger *log.Logger) EnvOpener {
	return NewEnvOpenerAt(resolver, "", logger)
}

// NewEnvOpenerAt is NewEnvOpener for the repository enclosing dir.
func NewEnvOpenerAt(resolver *LocationResolver, dir string, logger *log.Logger) EnvOpener {
	return func(ctx context.Context) (*Env, error) {
		loc, err := resolver.Resolve(dir)
		if err != nil {
			return nil, err
		}
		cfg, err := LoadConfig(loc)
		if err != nil {
			return nil, err
		}
		return OpenEnv(loc, cfg, logger)
	}
}

func (e *Env) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

func (e *Env) RefFilter() RefFilter {
	return e.Config.RefFilter()
}

// Replayer snapshots the event log as it is now.
func (e *Env) Replayer(ctx context.Context) (*EventReplayer, error) {
	return EventReplayerFromDB(ctx, e.EventLog, e.RefFilter())
}

// NewTransaction allocates a transaction id and returns the metadata its
// events should carry.
func (e *Env) NewTransaction(ctx context.Context, commandName string) (EventMeta, error) {
	now := e.Now()
	tx, err := e.EventLog.MakeTransactionID(ctx, now, commandName)
	if err != nil {
		return EventMeta{}, err
	}
	return NewMeta(tx, now), nil
}

// RepoSnapshot is the live repository state a graph is built against.
type RepoSnapshot struct {
	Head     HeadInfo
	Main     NonZeroOid
	Branches map[NonZeroOid][]string
}

func (e *Env) Snapshot(ctx context.Context) (RepoSnapshot, error) {
	head, err := e.Repo.HeadInfo(ctx)
	if err != nil {
		return RepoSnapshot{}, err
	}
	main, err := e.Repo.MainBranchOid(ctx)
	if err != nil {
		return RepoSnapshot{}, err
	}
	branches, err := e.Repo.BranchOidToNames(ctx)
	if err != nil {
		return RepoSnapshot{}, err
	}
	return RepoSnapshot{Head: head, Main: main, Branches: branches}, nil
}

// BuildGraph builds the graph at cursor against the current repository state.
func (e *Env) BuildGraph(ctx context.Context, replayer *EventReplayer, cursor EventCursor, hideBranches bool) (*Graph, RepoSnapshot, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, RepoSnapshot{}, err
	}
	graph, err := MakeGraph(
		log.WithContext(ctx, e.Logger),
		e.Repo,
		e.MergeBases,
		replayer,
		cursor,
		HeadOid{Oid: snap.Head.Oid},
		MainBranchOid{Oid: snap.Main},
		BranchOids(snap.Branches),
		hideBranches,
	)
	if err != nil {
		return nil, RepoSnapshot{}, fmt.Errorf("build commit graph: %w", err)
	}
	return graph, snap, nil
}

// withEnv opens an Env, runs fn and closes the Env, joining any close error.
func withEnv[T any](ctx context.Context, open EnvOpener, fn func(*Env) (T, error)) (out T, err error) {
	env, err := open(ctx)
	if err != nil {
		return out, err
	}
	defer func() {
		err = errors.Join(err, env.Close())
	}()
	return fn(env)
}
