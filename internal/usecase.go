package internal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// Input/Output DTOs

type PostCommitOutput struct {
	Commit *Commit // nil when HEAD is unborn
}

type PostRewriteInput struct {
	RewriteType string // "amend" or "rebase"
	Lines       io.Reader
}

type PostRewriteOutput struct {
	Rewritten int
	// Skipped counts malformed lines that were logged and left out.
	Skipped   int
	// Spurious is set for the amend git reports for every commit a rebase
	// rewrites; such runs are recorded but stay silent.
	Spurious  bool
	Abandoned *AbandonedWarning
}

type PostCheckoutInput struct {
	PreviousHead     string
	CurrentHead      string
	IsBranchCheckout bool
}

type PostCheckoutOutput struct {
	Recorded bool
}

type ReferenceTransactionInput struct {
	State string
	Lines io.Reader
}

type ReferenceTransactionOutput struct {
	Updates []RefUpdateEvent
	Skipped int
}

type InstallHooksInput struct {
	Force bool
}

type InstallHooksOutput struct {
	Installed []string
	BackedUp  []string
}

type UninstallHooksInput struct {
	KeepConfig bool
}

type UninstallHooksOutput struct {
	Removed  []string
	Restored []string
}

type InitInput struct {
	MainBranch string
	NoHooks    bool
	Force      bool
}

type InitOutput struct {
	Location  Location
	Installed []string
}

// AbandonedWarning describes descendants a rewrite left behind.
type AbandonedWarning struct {
	Commits  []NonZeroOid
	Branches []string
}

func (w AbandonedWarning) Message() string {
	var items []string
	if len(w.Commits) > 0 {
		items = append(items, Pluralize(len(w.Commits), "commit", "commits"))
	}
	if len(w.Branches) > 0 {
		items = append(items, fmt.Sprintf("%s (%s)",
			Pluralize(len(w.Branches), "branch", "branches"), strings.Join(w.Branches, ", ")))
	}
	return fmt.Sprintf("This operation abandoned %s!", strings.Join(items, " and "))
}

// Use cases

type PostCommitUseCase struct {
	open EnvOpener
}

func NewPostCommitUseCase(open EnvOpener) *PostCommitUseCase {
	return &PostCommitUseCase{open: open}
}

func (uc *PostCommitUseCase) Execute(ctx context.Context) (*PostCommitOutput, error) {
	return withEnv(ctx, uc.open, func(env *Env) (*PostCommitOutput, error) {
		head, err := env.Repo.HeadInfo(ctx)
		if err != nil {
			return nil, err
		}
		oid, ok := head.Oid.NonZero()
		if !ok {
			env.Logger.Warn("post-commit hook called, but could not determine the oid of HEAD")
			return &PostCommitOutput{}, nil
		}

		commit, err := env.Repo.FindCommit(ctx, oid)
		if err != nil {
			return nil, err
		}
		if commit == nil {
			return nil, fmt.Errorf("%w: HEAD commit %s not found", ErrInconsistentRepository, oid)
		}

		tx, err := env.EventLog.MakeTransactionID(ctx, env.Now(), "hook-post-commit")
		if err != nil {
			return nil, err
		}
		event := CommitEvent{EventMeta: NewMeta(tx, commit.Time), Oid: oid}
		if err := env.EventLog.AddEvents(ctx, []Event{event}); err != nil {
			return nil, err
		}
		env.Logger.Debug("recorded commit", "oid", oid.Short(), "tx", tx)
		return &PostCommitOutput{Commit: commit}, nil
	})
}

type PostRewriteUseCase struct {
	open EnvOpener
}

func NewPostRewriteUseCase(open EnvOpener) *PostRewriteUseCase {
	return &PostRewriteUseCase{open: open}
}

func (uc *PostRewriteUseCase) Execute(ctx context.Context, input PostRewriteInput) (*PostRewriteOutput, error) {
	return withEnv(ctx, uc.open, func(env *Env) (out *PostRewriteOutput, err error) {
		done := logOp(env.Logger, "post-rewrite", "type", input.RewriteType)
		defer func() { done(err) }()

		skipped := 0
		pairs, err := ParseRewriteLines(input.Lines, func(err error) {
			env.Logger.Error("could not parse post-rewrite line", "err", err)
			skipped++
		})
		if err != nil {
			return nil, err
		}

		rebasing, err := env.Repo.IsRebaseUnderway(ctx)
		if err != nil {
			return nil, err
		}
		out = &PostRewriteOutput{
			Rewritten: len(pairs),
			Skipped:   skipped,
			Spurious:  input.RewriteType == "amend" && rebasing,
		}
		if len(pairs) == 0 {
			return out, nil
		}

		meta, err := env.NewTransaction(ctx, "hook-post-rewrite")
		if err != nil {
			return nil, err
		}
		if err := env.EventLog.AddEvents(ctx, RewriteEvents(meta, pairs)); err != nil {
			return nil, err
		}

		if !env.Config.Restack.WarnAbandoned || out.Spurious {
			return out, nil
		}

		oldOids := make([]NonZeroOid, 0, len(pairs))
		for _, p := range pairs {
			oldOids = append(oldOids, p.Old)
		}
		warning, err := findAbandoned(ctx, env, oldOids)
		if err != nil {
			return nil, fmt.Errorf("check for abandoned commits: %w", err)
		}
		out.Abandoned = warning
		return out, nil
	})
}

// findAbandoned aggregates the abandoned children of every rewritten commit
// into one warning, or nil when nothing was left behind.
func findAbandoned(ctx context.Context, env *Env, oldOids []NonZeroOid) (*AbandonedWarning, error) {
	// The caller has just appended; an older snapshot would miss the rewrites.
	replayer, err := env.Replayer(ctx)
	if err != nil {
		return nil, err
	}
	cursor := replayer.MakeDefaultCursor()

	graph, snap, err := env.BuildGraph(ctx, replayer, cursor, false)
	if err != nil {
		return nil, err
	}

	children := make(map[NonZeroOid]bool)
	branches := make(map[string]bool)
	for _, old := range oldOids {
		_, abandoned, ok := FindAbandonedChildren(graph, replayer, cursor, old)
		if !ok {
			continue
		}
		for _, c := range abandoned {
			children[c] = true
		}
		for _, name := range snap.Branches[old] {
			branches[name] = true
		}
	}
	if len(children) == 0 && len(branches) == 0 {
		return nil, nil
	}

	w := &AbandonedWarning{}
	for c := range children {
		w.Commits = append(w.Commits, c)
	}
	sortedOids(w.Commits)
	for b := range branches {
		w.Branches = append(w.Branches, b)
	}
	sort.Strings(w.Branches)
	return w, nil
}

type PostCheckoutUseCase struct {
	open EnvOpener
}

func NewPostCheckoutUseCase(open EnvOpener) *PostCheckoutUseCase {
	return &PostCheckoutUseCase{open: open}
}

func (uc *PostCheckoutUseCase) Execute(ctx context.Context, input PostCheckoutInput) (*PostCheckoutOutput, error) {
	if !input.IsBranchCheckout {
		return &PostCheckoutOutput{}, nil
	}

	oldOid, err := ParseMaybeZeroOid(input.PreviousHead)
	if err != nil {
		return nil, fmt.Errorf("previous HEAD: %w", err)
	}
	newOid, err := ParseMaybeZeroOid(input.CurrentHead)
	if err != nil {
		return nil, fmt.Errorf("current HEAD: %w", err)
	}

	return withEnv(ctx, uc.open, func(env *Env) (*PostCheckoutOutput, error) {
		meta, err := env.NewTransaction(ctx, "hook-post-checkout")
		if err != nil {
			return nil, err
		}
		event := RefUpdateEvent{EventMeta: meta, RefName: "HEAD", OldOid: oldOid, NewOid: newOid}
		if err := env.EventLog.AddEvents(ctx, []Event{event}); err != nil {
			return nil, err
		}
		return &PostCheckoutOutput{Recorded: true}, nil
	})
}

type ReferenceTransactionUseCase struct {
	open EnvOpener
}

func NewReferenceTransactionUseCase(open EnvOpener) *ReferenceTransactionUseCase {
	return &ReferenceTransactionUseCase{open: open}
}

func (uc *ReferenceTransactionUseCase) Execute(ctx context.Context, input ReferenceTransactionInput) (*ReferenceTransactionOutput, error) {
	if input.State != "committed" {
		return &ReferenceTransactionOutput{}, nil
	}

	return withEnv(ctx, uc.open, func(env *Env) (*ReferenceTransactionOutput, error) {
		out := &ReferenceTransactionOutput{}
		filter := env.RefFilter()
		scanner := bufio.NewScanner(input.Lines)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			event, err := ParseReferenceTransactionLine(line, EventMeta{}, filter)
			if err != nil {
				env.Logger.Error("could not parse reference-transaction line", "err", err)
				out.Skipped++
				continue
			}
			if event != nil {
				out.Updates = append(out.Updates, *event)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read reference-transaction lines: %w", err)
		}
		// No transaction for a batch that left nothing to record.
		if len(out.Updates) == 0 {
			return out, nil
		}

		meta, err := env.NewTransaction(ctx, "reference-transaction")
		if err != nil {
			return nil, err
		}
		events := make([]Event, 0, len(out.Updates))
		for i := range out.Updates {
			out.Updates[i].EventMeta = meta
			events = append(events, out.Updates[i])
		}
		if err := env.EventLog.AddEvents(ctx, events); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Summary lists the updated refs, sorted, for the hook's one-line report.
func (o *ReferenceTransactionOutput) Summary() string {
	names := make([]string, 0, len(o.Updates))
	for _, u := range o.Updates {
		names = append(names, DescribeRef(u.RefName))
	}
	sort.Strings(names)
	return fmt.Sprintf("processing %s: %s",
		Pluralize(len(o.Updates), "update", "updates"), strings.Join(names, ", "))
}

type InstallHooksUseCase struct {
	resolver *LocationResolver
}

func NewInstallHooksUseCase(resolver *LocationResolver) *InstallHooksUseCase {
	return &InstallHooksUseCase{resolver: resolver}
}

func (uc *InstallHooksUseCase) Execute(ctx context.Context, input InstallHooksInput) (*InstallHooksOutput, error) {
	loc, err := uc.resolver.Resolve("")
	if err != nil {
		return nil, err
	}
	return installHooks(loc, input.Force)
}

func installHooks(loc Location, force bool) (*InstallHooksOutput, error) {
	if err := os.MkdirAll(loc.HooksDir(), 0755); err != nil {
		return nil, fmt.Errorf("create hooks directory: %w", err)
	}

	// Refuse before writing anything so a conflict leaves no partial install.
	if !force {
		for _, hook := range ManagedHooks {
			content, err := os.ReadFile(filepath.Join(loc.HooksDir(), hook))
			if err == nil && !IsManagedHook(string(content)) {
				return nil, fmt.Errorf("%s hook already exists (use --force to back it up and overwrite)", hook)
			}
		}
	}

	out := &InstallHooksOutput{}
	for _, hook := range ManagedHooks {
		path := filepath.Join(loc.HooksDir(), hook)
		content, err := os.ReadFile(path)
		switch {
		case err == nil && !IsManagedHook(string(content)):
			if err := os.WriteFile(path+".bak", content, 0755); err != nil {
				return nil, fmt.Errorf("back up %s hook: %w", hook, err)
			}
			out.BackedUp = append(out.BackedUp, hook)
		case err != nil && !os.IsNotExist(err):
			return nil, fmt.Errorf("read %s hook: %w", hook, err)
		}

		if err := os.WriteFile(path, []byte(HookScript(hook)), 0755); err != nil {
			return nil, fmt.Errorf("write %s hook: %w", hook, err)
		}
		out.Installed = append(out.Installed, hook)
	}

	cfg, err := LoadConfig(loc)
	if err != nil {
		return nil, err
	}
	cfg.Hooks.Installed = append([]string(nil), out.Installed...)
	if err := SaveConfig(loc, cfg); err != nil {
		return nil, err
	}
	return out, nil
}

type UninstallHooksUseCase struct {
	resolver *LocationResolver
}

func NewUninstallHooksUseCase(resolver *LocationResolver) *UninstallHooksUseCase {
	return &UninstallHooksUseCase{resolver: resolver}
}

func (uc *UninstallHooksUseCase) Execute(ctx context.Context, input UninstallHooksInput) (*UninstallHooksOutput, error) {
	loc, err := uc.resolver.Resolve("")
	if err != nil {
		return nil, err
	}

	out := &UninstallHooksOutput{}
	for _, hook := range ManagedHooks {
		path := filepath.Join(loc.HooksDir(), hook)
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s hook: %w", hook, err)
		}
		if !IsManagedHook(string(content)) {
			continue
		}

		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove %s hook: %w", hook, err)
		}
		out.Removed = append(out.Removed, hook)

		if _, err := os.Stat(path + ".bak"); err == nil {
			if err := os.Rename(path+".bak", path); err != nil {
				return nil, fmt.Errorf("restore %s hook: %w", hook, err)
			}
			out.Restored = append(out.Restored, hook)
		}
	}

	if input.KeepConfig || !loc.IsInitialized() {
		return out, nil
	}
	cfg, err := LoadConfig(loc)
	if err != nil {
		return nil, err
	}
	cfg.Hooks.Installed = slices.DeleteFunc(cfg.Hooks.Installed, func(h string) bool {
		return slices.Contains(out.Removed, h)
	})
	if err := SaveConfig(loc, cfg); err != nil {
		return nil, err
	}
	return out, nil
}

type InitUseCase struct {
	resolver *LocationResolver
	open     func(Location, *Config) (*Env, error)
}

func NewInitUseCase(resolver *LocationResolver, open func(Location, *Config) (*Env, error)) *InitUseCase {
	return &InitUseCase{resolver: resolver, open: open}
}

// Execute creates keeper's metadata directory, config and database, then
// installs the hooks unless told not to.
func (uc *InitUseCase) Execute(ctx context.Context, input InitInput) (*InitOutput, error) {
	loc, err := uc.resolver.Resolve("")
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(loc)
	if err != nil {
		return nil, err
	}
	if input.MainBranch != "" {
		cfg.MainBranch = input.MainBranch
	}
	if err := SaveConfig(loc, cfg); err != nil {
		return nil, err
	}

	env, err := uc.open(loc, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := env.Repo.MainBranchOid(ctx); errors.Is(err, ErrMainBranchNotFound) {
		env.Logger.Warn("main branch not found; set main_branch in the config", "branch", cfg.MainBranch)
	}
	if err := env.Close(); err != nil {
		return nil, err
	}

	out := &InitOutput{Location: loc}
	if input.NoHooks {
		return out, nil
	}
	installed, err := installHooks(loc, input.Force)
	if err != nil {
		return nil, err
	}
	out.Installed = installed.Installed
	return out, nil
}
