package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Smartlog is the commit graph at one point of the event log, ready to render.
type Smartlog struct {
	Graph  *Graph
	Cursor EventCursor
	// Tx is the transaction the cursor sits after, zero for an empty log.
	Tx EventTransactionID
	// RewrittenAs maps obsolete commits to what replaced them.
	RewrittenAs map[NonZeroOid]MaybeZeroOid
	// Shown lists the commits to display, oldest first.
	Shown []NonZeroOid

	shown map[NonZeroOid]bool
}

// SmartlogEntry is the flat, serialisable view of one displayed commit.
type SmartlogEntry struct {
	Oid         string   `json:"oid"`
	Parents     []string `json:"parents"`
	Summary     string   `json:"summary"`
	Branches    []string `json:"branches,omitempty"`
	IsHead      bool     `json:"is_head"`
	IsMain      bool     `json:"is_main"`
	IsHidden    bool     `json:"is_hidden"`
	RewrittenAs string   `json:"rewritten_as,omitempty"`
}

func (s *Smartlog) Entries() []SmartlogEntry {
	entries := make([]SmartlogEntry, 0, len(s.Shown))
	for _, oid := range s.Shown {
		n := s.Graph.Nodes[oid]
		e := SmartlogEntry{
			Oid:      oid.String(),
			Summary:  n.Commit.Summary,
			Branches: n.Branches,
			IsHead:   n.IsHead,
			IsMain:   n.IsMain,
			IsHidden: n.IsHidden,
		}
		for _, p := range n.ParentOids {
			e.Parents = append(e.Parents, p.String())
		}
		if target, ok := s.RewrittenAs[oid]; ok {
			e.RewrittenAs = target.String()
		}
		entries = append(entries, e)
	}
	return entries
}

func (s *Smartlog) isShown(oid NonZeroOid) bool {
	return s.shown[oid]
}

// buildSmartlog builds the smartlog at cursor. Past cursors take HEAD and the
// branches from the replayed refs so the view matches that moment.
func buildSmartlog(ctx context.Context, env *Env, replayer *EventReplayer, cursor EventCursor, hideBranches bool) (*Smartlog, error) {
	var (
		graph *Graph
		err   error
	)
	if cursor.Position() == replayer.Len() {
		graph, _, err = env.BuildGraph(ctx, replayer, cursor, hideBranches)
	} else {
		graph, err = buildHistoricalGraph(ctx, env, replayer, cursor, hideBranches)
	}
	if err != nil {
		return nil, err
	}

	sl := &Smartlog{
		Graph:       graph,
		Cursor:      cursor,
		RewrittenAs: make(map[NonZeroOid]MaybeZeroOid),
	}
	if tx, _, ok := replayer.TxEventsBeforeCursor(cursor); ok {
		sl.Tx = tx
	}
	for oid := range graph.Nodes {
		if target, ok := replayer.FindRewriteTarget(cursor, oid); ok {
			sl.RewrittenAs[oid] = target
		}
	}

	// Obsolete commits are dropped like hidden ones unless something shown
	// still builds on them.
	visible := make(map[NonZeroOid]bool)
	for _, oid := range graph.Visible() {
		visible[oid] = true
	}
	memo := make(map[NonZeroOid]bool)
	var shown func(NonZeroOid) bool
	shown = func(oid NonZeroOid) bool {
		if v, ok := memo[oid]; ok {
			return v
		}
		memo[oid] = false
		n := graph.Nodes[oid]
		_, obsolete := sl.RewrittenAs[oid]

		var keep bool
		if n.IsMain {
			keep = oid == graph.Main || n.IsHead || len(n.Branches) > 0
		} else {
			keep = visible[oid] && (!obsolete || n.IsHead || len(n.Branches) > 0)
		}
		for _, c := range n.Children {
			// Mainline commits only earn a line by carrying work off the mainline.
			if shown(c) && !(n.IsMain && graph.Nodes[c].IsMain) {
				keep = true
			}
		}
		memo[oid] = keep
		return keep
	}
	for oid := range graph.Nodes {
		if shown(oid) {
			sl.Shown = append(sl.Shown, oid)
		}
	}
	graph.sortByTime(sl.Shown)
	sl.shown = memo
	return sl, nil
}

func buildHistoricalGraph(ctx context.Context, env *Env, replayer *EventReplayer, cursor EventCursor, hideBranches bool) (*Graph, error) {
	snap, err := env.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	refs := replayer.ProjectionAt(cursor).Refs

	exists := func(oid MaybeZeroOid) (NonZeroOid, bool) {
		nz, ok := oid.NonZero()
		if !ok {
			return NonZeroOid{}, false
		}
		c, err := env.Repo.FindCommit(ctx, nz)
		return nz, err == nil && c != nil
	}

	head := snap.Head.Oid
	if oid, ok := refs["HEAD"]; ok {
		head = ZeroOid
		if nz, ok := exists(oid); ok {
			head = nz.Maybe()
		}
	}

	main := snap.Main
	if oid, ok := refs["refs/heads/"+mainBranchOf(env)]; ok {
		if nz, ok := exists(oid); ok {
			main = nz
		}
	}

	branches := make(BranchOids)
	for name, oid := range refs {
		short, ok := strings.CutPrefix(name, "refs/heads/")
		if !ok {
			continue
		}
		if nz, ok := exists(oid); ok {
			branches[nz] = append(branches[nz], short)
		}
	}
	if len(branches) == 0 {
		branches = BranchOids(snap.Branches)
	}

	return MakeGraph(log.WithContext(ctx, env.Logger), env.Repo, env.MergeBases, replayer, cursor,
		HeadOid{Oid: head}, MainBranchOid{Oid: main}, branches, hideBranches)
}

func mainBranchOf(env *Env) string {
	if env.Config != nil && env.Config.MainBranch != "" {
		return env.Config.MainBranch
	}
	return DefaultMainBranch
}

// SmartlogService builds smartlogs.
type SmartlogService struct {
	open EnvOpener
}

func NewSmartlogService(open EnvOpener) *SmartlogService {
	return &SmartlogService{open: open}
}

type SmartlogInput struct {
	// AtTx shows the smartlog as it was right after this transaction; zero means now.
	AtTx         EventTransactionID
	HideBranches bool
}

func (s *SmartlogService) Build(ctx context.Context, input SmartlogInput) (*Smartlog, error) {
	return withEnv(ctx, s.open, func(env *Env) (*Smartlog, error) {
		replayer, err := env.Replayer(ctx)
		if err != nil {
			return nil, err
		}
		cursor := replayer.MakeDefaultCursor()
		if input.AtTx != 0 {
			c, ok := replayer.CursorAfterTransaction(input.AtTx)
			if !ok {
				return nil, fmt.Errorf("%w: %d", ErrUnknownTransaction, input.AtTx)
			}
			cursor = c
		}
		return buildSmartlog(ctx, env, replayer, cursor, input.HideBranches)
	})
}

// VisibilityService hides and unhides commits.
type VisibilityService struct {
	open EnvOpener
}

func NewVisibilityService(open EnvOpener) *VisibilityService {
	return &VisibilityService{open: open}
}

type VisibilityInput struct {
	Revisions []string
	Reason    string
	// Recursive extends the change to every descendant in the smartlog.
	Recursive bool
}

// RevisionResolver is implemented by repositories that understand revision
// syntax beyond full hex oids.
type RevisionResolver interface {
	ResolveRevision(ctx context.Context, rev string) (NonZeroOid, error)
}

func (s *VisibilityService) Hide(ctx context.Context, input VisibilityInput) ([]NonZeroOid, error) {
	return s.apply(ctx, "hide", input, func(meta EventMeta, oid NonZeroOid) Event {
		return HideEvent{EventMeta: meta, Oid: oid, Reason: input.Reason}
	})
}

func (s *VisibilityService) Unhide(ctx context.Context, input VisibilityInput) ([]NonZeroOid, error) {
	return s.apply(ctx, "unhide", input, func(meta EventMeta, oid NonZeroOid) Event {
		return UnhideEvent{EventMeta: meta, Oid: oid, Reason: input.Reason}
	})
}

func (s *VisibilityService) apply(ctx context.Context, command string, input VisibilityInput, mk func(EventMeta, NonZeroOid) Event) ([]NonZeroOid, error) {
	return withEnv(ctx, s.open, func(env *Env) ([]NonZeroOid, error) {
		oids, err := resolveRevisions(ctx, env.Repo, input.Revisions)
		if err != nil {
			return nil, err
		}

		if input.Recursive {
			replayer, err := env.Replayer(ctx)
			if err != nil {
				return nil, err
			}
			graph, _, err := env.BuildGraph(ctx, replayer, replayer.MakeDefaultCursor(), false)
			if err != nil {
				return nil, err
			}
			oids = withDescendants(graph, oids)
		}

		meta, err := env.NewTransaction(ctx, command)
		if err != nil {
			return nil, err
		}
		events := make([]Event, 0, len(oids))
		for _, oid := range oids {
			events = append(events, mk(meta, oid))
		}
		if err := env.EventLog.AddEvents(ctx, events); err != nil {
			return nil, err
		}
		return oids, nil
	})
}

func resolveRevisions(ctx context.Context, repo Repository, revs []string) ([]NonZeroOid, error) {
	resolver, canResolve := repo.(RevisionResolver)

	var oids []NonZeroOid
	seen := make(map[NonZeroOid]bool)
	for _, rev := range revs {
		var oid NonZeroOid
		var err error
		if canResolve {
			oid, err = resolver.ResolveRevision(ctx, rev)
		} else {
			oid, err = ParseNonZeroOid(rev)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", rev, err)
		}

		commit, err := repo.FindCommit(ctx, oid)
		if err != nil {
			return nil, err
		}
		if commit == nil {
			return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, rev)
		}
		if !seen[oid] {
			seen[oid] = true
			oids = append(oids, oid)
		}
	}
	return oids, nil
}

// withDescendants adds every in-graph, off-mainline descendant of oids.
func withDescendants(graph *Graph, oids []NonZeroOid) []NonZeroOid {
	seen := make(map[NonZeroOid]bool)
	var out []NonZeroOid
	stack := append([]NonZeroOid(nil), oids...)
	for len(stack) > 0 {
		oid := stack[0]
		stack = stack[1:]
		if seen[oid] {
			continue
		}
		seen[oid] = true
		out = append(out, oid)
		if n, ok := graph.Node(oid); ok {
			for _, c := range n.Children {
				if !graph.Nodes[c].IsMain {
					stack = append(stack, c)
				}
			}
		}
	}
	return out
}

// HistoryService lists and compares event transactions.
type HistoryService struct {
	open     EnvOpener
	renderer *SmartlogRenderer
}

func NewHistoryService(open EnvOpener, renderer *SmartlogRenderer) *HistoryService {
	return &HistoryService{open: open, renderer: renderer}
}

type TransactionEntry struct {
	EventTransaction
	Events []Event
}

// List returns the most recent transactions with their events, newest first.
// Transactions that never got an event have no cursor and are left out.
func (s *HistoryService) List(ctx context.Context, limit int) ([]TransactionEntry, error) {
	return withEnv(ctx, s.open, func(env *Env) ([]TransactionEntry, error) {
		txs, err := env.EventLog.Transactions(ctx, 0)
		if err != nil {
			return nil, err
		}
		entries := make([]TransactionEntry, 0, len(txs))
		for _, tx := range txs {
			if limit > 0 && len(entries) == limit {
				break
			}
			events, err := env.EventLog.EventsForTransaction(ctx, tx.ID)
			if err != nil {
				return nil, err
			}
			if len(events) == 0 {
				continue
			}
			entries = append(entries, TransactionEntry{EventTransaction: tx, Events: events})
		}
		return entries, nil
	})
}

// Diff renders the smartlog just before and just after tx and returns a
// line diff of the two.
func (s *HistoryService) Diff(ctx context.Context, tx EventTransactionID) (string, error) {
	return withEnv(ctx, s.open, func(env *Env) (string, error) {
		replayer, err := env.Replayer(ctx)
		if err != nil {
			return "", err
		}
		before, ok := replayer.CursorBeforeTransaction(tx)
		if !ok {
			return "", fmt.Errorf("%w: %d", ErrUnknownTransaction, tx)
		}
		after, _ := replayer.CursorAfterTransaction(tx)

		beforeLog, err := buildSmartlog(ctx, env, replayer, before, false)
		if err != nil {
			return "", err
		}
		afterLog, err := buildSmartlog(ctx, env, replayer, after, false)
		if err != nil {
			return "", err
		}
		return DiffLines(s.renderer.Render(beforeLog), s.renderer.Render(afterLog)), nil
	})
}

// DiffLines returns a line-oriented diff with "+", "-" and " " prefixes.
func DiffLines(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// StatusService summarises keeper's view of the repository.
type StatusService struct {
	open EnvOpener
}

func NewStatusService(open EnvOpener) *StatusService {
	return &StatusService{open: open}
}

type Status struct {
	Location       Location
	Head           HeadInfo
	MainBranch     string
	Main           MaybeZeroOid
	Events         int
	Hidden         int
	Rebasing       bool
	HooksInstalled []string
}

func (s *StatusService) Status(ctx context.Context) (*Status, error) {
	return withEnv(ctx, s.open, func(env *Env) (*Status, error) {
		st := &Status{
			Location:       env.Location,
			MainBranch:     mainBranchOf(env),
			HooksInstalled: env.Config.Hooks.Installed,
		}

		head, err := env.Repo.HeadInfo(ctx)
		if err != nil {
			return nil, err
		}
		st.Head = head

		if main, err := env.Repo.MainBranchOid(ctx); err == nil {
			st.Main = main.Maybe()
		}

		replayer, err := env.Replayer(ctx)
		if err != nil {
			return nil, err
		}
		st.Events = replayer.Len()
		st.Hidden = len(replayer.ProjectionAt(replayer.MakeDefaultCursor()).Hidden)

		if st.Rebasing, err = env.Repo.IsRebaseUnderway(ctx); err != nil {
			return nil, err
		}
		return st, nil
	})
}
