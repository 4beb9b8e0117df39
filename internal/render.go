package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	SymbolHead     = "@"
	SymbolCommit   = "○"
	SymbolMain     = "◆"
	SymbolHidden   = "✕"
	SymbolVertical = "│"
	SymbolMainline = ":"
)

type SmartlogStyles struct {
	Head     lipgloss.Style
	Commit   lipgloss.Style
	Main     lipgloss.Style
	Hidden   lipgloss.Style
	Oid      lipgloss.Style
	Branch   lipgloss.Style
	Line     lipgloss.Style
	Warning  lipgloss.Style
	Emphasis lipgloss.Style
}

func DefaultSmartlogStyles() SmartlogStyles {
	return SmartlogStyles{
		Head:     lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")).Bold(true),
		Commit:   lipgloss.NewStyle(),
		Main:     lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7")),
		Hidden:   lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")),
		Oid:      lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")),
		Branch:   lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		Line:     lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")).Bold(true),
		Emphasis: lipgloss.NewStyle().Bold(true),
	}
}

// PlainSmartlogStyles renders without any styling; used for diffs and tests.
func PlainSmartlogStyles() SmartlogStyles {
	s := lipgloss.NewStyle()
	return SmartlogStyles{Head: s, Commit: s, Main: s, Hidden: s, Oid: s, Branch: s, Line: s, Warning: s, Emphasis: s}
}

// SmartlogRenderer draws a smartlog as text, oldest commit first. Mainline
// anchors form the spine, joined by ":" since their history is elided; the
// commits built on each anchor hang off it, indented per fork.
type SmartlogRenderer struct {
	styles SmartlogStyles
}

func NewSmartlogRenderer(styles SmartlogStyles) *SmartlogRenderer {
	return &SmartlogRenderer{styles: styles}
}

func (r *SmartlogRenderer) Render(sl *Smartlog) string {
	var b strings.Builder
	g := sl.Graph
	drawn := make(map[NonZeroOid]bool)

	first := true
	for _, anchor := range g.Mainline() {
		if !sl.isShown(anchor) {
			continue
		}
		if !first {
			b.WriteString(r.styles.Line.Render(SymbolMainline) + "\n")
		}
		first = false
		r.writeNode(&b, sl, anchor, 0)
		drawn[anchor] = true
		r.writeChildren(&b, sl, anchor, 0, drawn)
	}

	// Stacks whose base is not on the mainline, e.g. unrelated histories.
	for _, root := range g.Roots() {
		if drawn[root] || !sl.isShown(root) || g.Nodes[root].IsMain {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		r.writeNode(&b, sl, root, 0)
		drawn[root] = true
		r.writeChildren(&b, sl, root, 0, drawn)
	}
	return b.String()
}

func (r *SmartlogRenderer) writeChildren(b *strings.Builder, sl *Smartlog, oid NonZeroOid, depth int, drawn map[NonZeroOid]bool) {
	var children []NonZeroOid
	for _, c := range sl.Graph.Nodes[oid].Children {
		if sl.isShown(c) && !sl.Graph.Nodes[c].IsMain && !drawn[c] {
			children = append(children, c)
		}
	}

	// A linear stack stays in one column; each fork shifts right.
	d := depth
	if depth == 0 || len(children) > 1 {
		d = depth + 1
	}
	for _, c := range children {
		b.WriteString(r.indent(d) + r.styles.Line.Render(SymbolVertical) + "\n")
		r.writeNode(b, sl, c, d)
		drawn[c] = true
		r.writeChildren(b, sl, c, d, drawn)
	}
}

func (r *SmartlogRenderer) indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func (r *SmartlogRenderer) writeNode(b *strings.Builder, sl *Smartlog, oid NonZeroOid, depth int) {
	n := sl.Graph.Nodes[oid]
	_, obsolete := sl.RewrittenAs[oid]

	var symbol string
	switch {
	case n.IsHead:
		symbol = r.styles.Head.Render(SymbolHead)
	case n.IsHidden || obsolete:
		symbol = r.styles.Hidden.Render(SymbolHidden)
	case n.IsMain:
		symbol = r.styles.Main.Render(SymbolMain)
	default:
		symbol = r.styles.Commit.Render(SymbolCommit)
	}

	parts := []string{symbol, r.styles.Oid.Render(oid.Short())}
	if len(n.Branches) > 0 {
		parts = append(parts, r.styles.Branch.Render("("+strings.Join(n.Branches, ", ")+")"))
	}
	summary := n.Commit.Summary
	if n.IsHidden || obsolete {
		summary = r.styles.Hidden.Render(summary)
	}
	parts = append(parts, summary)

	if target, ok := sl.RewrittenAs[oid]; ok {
		if target.IsZero() {
			parts = append(parts, r.styles.Hidden.Render("(dropped)"))
		} else {
			parts = append(parts, r.styles.Hidden.Render(fmt.Sprintf("(rewritten as %s)", target.String()[:7])))
		}
	}

	b.WriteString(r.indent(depth) + strings.Join(parts, " ") + "\n")
}

// RenderAbandonedWarning formats the post-rewrite warning with suggested followups.
func (r *SmartlogRenderer) RenderAbandonedWarning(w *AbandonedWarning) string {
	var b strings.Builder
	b.WriteString("keeper: " + r.styles.Warning.Render(w.Message()) + "\n")
	b.WriteString("keeper: Consider running one of the following:\n")
	b.WriteString("keeper:   - " + r.styles.Emphasis.Render("keeper smartlog") + ": assess the situation\n")
	b.WriteString("keeper:   - " + r.styles.Emphasis.Render("keeper hide [<commit>...]") + ": hide the commits from the smartlog\n")
	b.WriteString("keeper:   - " + r.styles.Emphasis.Render("restack.warn_abandoned: false") + " in the config: suppress this message\n")
	return b.String()
}
