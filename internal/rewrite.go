package internal

// FindAbandonedChildren reports the visible children left attached to oldOid
// after it was rewritten. rewritten is the commit that replaced oldOid, or
// oldOid itself when the rewrite dropped it. ok is false when oldOid was never
// rewritten, is not part of the graph, or has no such children.
func FindAbandonedChildren(graph *Graph, replayer *EventReplayer, cursor EventCursor, oldOid NonZeroOid) (NonZeroOid, []NonZeroOid, bool) {
	target, ok := replayer.FindRewriteTarget(cursor, oldOid)
	if !ok {
		return NonZeroOid{}, nil, false
	}
	rewritten, ok := target.NonZero()
	if !ok {
		rewritten = oldOid
	}

	node, ok := graph.Node(oldOid)
	if !ok {
		return NonZeroOid{}, nil, false
	}

	var children []NonZeroOid
	for _, c := range node.Children {
		child := graph.Nodes[c]
		if child.IsHidden || replayer.IsRewritten(cursor, c) {
			continue
		}
		children = append(children, c)
	}
	if len(children) == 0 {
		return NonZeroOid{}, nil, false
	}
	return rewritten, children, true
}
