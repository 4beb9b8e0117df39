package internal

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
)

// HeadOid is the commit HEAD points at, zero on an unborn branch.
type HeadOid struct{ Oid MaybeZeroOid }

// MainBranchOid is the tip of the main branch.
type MainBranchOid struct{ Oid NonZeroOid }

// BranchOids maps branch tips to their branch names.
type BranchOids map[NonZeroOid][]string

type Node struct {
	Oid        NonZeroOid
	Commit     *Commit
	ParentOids []NonZeroOid
	// Children only lists commits that are themselves in the graph.
	Children []NonZeroOid
	Branches []string

	IsHidden    bool
	IsReachable bool
	IsMain      bool
	IsHead      bool
}

// Graph is the commit DAG at one cursor, cut off at the mainline: commits
// that are ancestors of main are kept as anchors, their history is not walked.
type Graph struct {
	Nodes map[NonZeroOid]*Node
	Head  MaybeZeroOid
	Main  NonZeroOid

	mainline []NonZeroOid
}

// MakeGraph builds the graph of commits the event log knows about at cursor,
// together with HEAD, main and the branch tips.
//
// Commits the repository no longer has are skipped. A HEAD that names a missing
// commit means the log and repository disagree and yields ErrInconsistentRepository.
func MakeGraph(
	ctx context.Context,
	repo Repository,
	mb *MergeBaseDB,
	replayer *EventReplayer,
	cursor EventCursor,
	head HeadOid,
	main MainBranchOid,
	branches BranchOids,
	hideBranches bool,
) (*Graph, error) {
	logger := log.FromContext(ctx)
	projection := replayer.ProjectionAt(cursor)

	g := &Graph{
		Nodes: make(map[NonZeroOid]*Node),
		Head:  head.Oid,
		Main:  main.Oid,
	}

	headOid, hasHead := head.Oid.NonZero()

	var frontier []NonZeroOid
	if hasHead {
		frontier = append(frontier, headOid)
	}
	frontier = append(frontier, main.Oid)
	frontier = append(frontier, sortedOids(keysOf(branches))...)
	frontier = append(frontier, sortedOids(projection.VisibleCommits())...)

	seen := make(map[NonZeroOid]bool)
	for len(frontier) > 0 {
		oid := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if seen[oid] {
			continue
		}
		seen[oid] = true

		commit, err := repo.FindCommit(ctx, oid)
		if err != nil {
			return nil, err
		}
		if commit == nil {
			if (hasHead && oid == headOid) || oid == main.Oid {
				return nil, fmt.Errorf("%w: commit %s not found", ErrInconsistentRepository, oid)
			}
			logger.Debug("skipping commit missing from repository", "oid", oid.Short())
			continue
		}

		isMain, err := IsAncestor(ctx, repo, mb, oid, main.Oid)
		if err != nil {
			return nil, err
		}

		g.Nodes[oid] = &Node{
			Oid:        oid,
			Commit:     commit,
			ParentOids: commit.ParentOids,
			IsMain:     isMain,
			IsHead:     hasHead && oid == headOid,
		}
		if !isMain {
			frontier = append(frontier, commit.ParentOids...)
		}
	}

	g.linkChildren()

	for oid, names := range branches {
		if n, ok := g.Nodes[oid]; ok {
			n.Branches = append([]string(nil), names...)
			sort.Strings(n.Branches)
		}
	}

	var roots []NonZeroOid
	if hasHead {
		roots = append(roots, headOid)
	}
	roots = append(roots, main.Oid)
	for oid := range branches {
		roots = append(roots, oid)
	}
	for oid := range g.ancestorsOf(roots...) {
		g.Nodes[oid].IsReachable = true
	}

	protected := make(map[NonZeroOid]bool)
	if hasHead {
		protected = g.ancestorsOf(headOid)
	}
	if !hideBranches {
		for oid := range g.ancestorsOf(keysOf(branches)...) {
			protected[oid] = true
		}
	}
	for oid, n := range g.Nodes {
		n.IsHidden = projection.IsHidden(oid) && !n.IsMain && !protected[oid]
	}

	mainline, err := g.orderMainline(ctx, repo, mb)
	if err != nil {
		return nil, err
	}
	g.mainline = mainline

	return g, nil
}

func (g *Graph) linkChildren() {
	for oid, n := range g.Nodes {
		for _, p := range n.ParentOids {
			if parent, ok := g.Nodes[p]; ok {
				parent.Children = append(parent.Children, oid)
			}
		}
	}
	for _, n := range g.Nodes {
		g.sortByTime(n.Children)
	}
}

// ancestorsOf walks parent links inside the graph, starting points included.
func (g *Graph) ancestorsOf(starts ...NonZeroOid) map[NonZeroOid]bool {
	out := make(map[NonZeroOid]bool)
	stack := append([]NonZeroOid(nil), starts...)
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := g.Nodes[oid]
		if !ok || out[oid] {
			continue
		}
		out[oid] = true
		stack = append(stack, n.ParentOids...)
	}
	return out
}

// orderMainline sorts the anchors so every commit follows its ancestors:
// an anchor with more anchor ancestors sits later.
func (g *Graph) orderMainline(ctx context.Context, repo MergeBaser, mb *MergeBaseDB) ([]NonZeroOid, error) {
	var anchors []NonZeroOid
	for oid, n := range g.Nodes {
		if n.IsMain {
			anchors = append(anchors, oid)
		}
	}
	g.sortByTime(anchors)

	depth := make(map[NonZeroOid]int, len(anchors))
	for _, a := range anchors {
		for _, b := range anchors {
			if a == b {
				continue
			}
			ok, err := IsAncestor(ctx, repo, mb, b, a)
			if err != nil {
				return nil, err
			}
			if ok {
				depth[a]++
			}
		}
	}

	sort.SliceStable(anchors, func(i, j int) bool {
		return depth[anchors[i]] < depth[anchors[j]]
	})
	return anchors, nil
}

// Mainline returns the anchor commits, ancestors first.
func (g *Graph) Mainline() []NonZeroOid {
	return append([]NonZeroOid(nil), g.mainline...)
}

func (g *Graph) Node(oid NonZeroOid) (*Node, bool) {
	n, ok := g.Nodes[oid]
	return n, ok
}

func (g *Graph) Contains(oid NonZeroOid) bool {
	_, ok := g.Nodes[oid]
	return ok
}

// Visible returns the nodes worth displaying: those not hidden, plus hidden
// ones that still have a visible descendant. Oldest first.
func (g *Graph) Visible() []NonZeroOid {
	memo := make(map[NonZeroOid]bool, len(g.Nodes))
	var visit func(NonZeroOid) bool
	visit = func(oid NonZeroOid) bool {
		if v, ok := memo[oid]; ok {
			return v
		}
		memo[oid] = false
		n := g.Nodes[oid]
		visible := !n.IsHidden
		for _, c := range n.Children {
			if visit(c) {
				visible = true
			}
		}
		memo[oid] = visible
		return visible
	}

	var out []NonZeroOid
	for oid := range g.Nodes {
		if visit(oid) {
			out = append(out, oid)
		}
	}
	g.sortByTime(out)
	return out
}

// Roots returns nodes with no parent in the graph, oldest first.
func (g *Graph) Roots() []NonZeroOid {
	var out []NonZeroOid
	for oid, n := range g.Nodes {
		root := true
		for _, p := range n.ParentOids {
			if g.Contains(p) {
				root = false
				break
			}
		}
		if root {
			out = append(out, oid)
		}
	}
	g.sortByTime(out)
	return out
}

func (g *Graph) sortByTime(oids []NonZeroOid) {
	sort.Slice(oids, func(i, j int) bool {
		ti, tj := g.Nodes[oids[i]].Commit.Time, g.Nodes[oids[j]].Commit.Time
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return oids[i].Less(oids[j])
	})
}

func keysOf[V any](m map[NonZeroOid]V) []NonZeroOid {
	out := make([]NonZeroOid, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedOids(oids []NonZeroOid) []NonZeroOid {
	sort.Slice(oids, func(i, j int) bool { return oids[i].Less(oids[j]) })
	return oids
}
