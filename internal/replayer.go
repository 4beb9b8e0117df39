package internal

import (
	"context"
	"fmt"
)

// EventCursor addresses a prefix of the event log: the number of events replayed.
type EventCursor struct {
	n int
}

func (c EventCursor) Position() int { return c.n }

// Projection is the state obtained by replaying a log prefix.
type Projection struct {
	// Refs maps reference names to their latest position.
	Refs map[string]MaybeZeroOid
	// Hidden holds commits whose most recent visibility event was a hide.
	Hidden map[NonZeroOid]struct{}
	// Commits holds every commit observed being created or produced by a rewrite.
	Commits map[NonZeroOid]struct{}
}

func emptyProjection() Projection {
	return Projection{
		Refs:    make(map[string]MaybeZeroOid),
		Hidden:  make(map[NonZeroOid]struct{}),
		Commits: make(map[NonZeroOid]struct{}),
	}
}

func (p Projection) IsHidden(oid NonZeroOid) bool {
	_, ok := p.Hidden[oid]
	return ok
}

// VisibleCommits returns the observed commits that are not hidden.
func (p Projection) VisibleCommits() []NonZeroOid {
	var oids []NonZeroOid
	for oid := range p.Commits {
		if !p.IsHidden(oid) {
			oids = append(oids, oid)
		}
	}
	return oids
}

// EventReplayer projects a snapshot of the event log onto point-in-time views.
//
// The snapshot is taken at construction: build a new replayer after appending,
// a stale one silently omits the new events.
type EventReplayer struct {
	events []Event
	filter RefFilter
	// rewrites indexes the log positions of RewriteEvents by old oid, in log order.
	rewrites map[NonZeroOid][]int
}

func NewEventReplayer(events []Event, filter RefFilter) *EventReplayer {
	if filter == nil {
		filter = func(string) bool { return false }
	}
	snapshot := make([]Event, len(events))
	copy(snapshot, events)

	rewrites := make(map[NonZeroOid][]int)
	for i, e := range snapshot {
		if rw, ok := e.(RewriteEvent); ok {
			rewrites[rw.OldOid] = append(rewrites[rw.OldOid], i)
		}
	}
	return &EventReplayer{events: snapshot, filter: filter, rewrites: rewrites}
}

func EventReplayerFromDB(ctx context.Context, log *EventLogDB, filter RefFilter) (*EventReplayer, error) {
	events, err := log.AllEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load event log: %w", err)
	}
	return NewEventReplayer(events, filter), nil
}

func (r *EventReplayer) Len() int { return len(r.events) }

func (r *EventReplayer) MakeDefaultCursor() EventCursor {
	return EventCursor{n: len(r.events)}
}

// MakeCursor clamps n into the log.
func (r *EventReplayer) MakeCursor(n int) EventCursor {
	switch {
	case n < 0:
		n = 0
	case n > len(r.events):
		n = len(r.events)
	}
	return EventCursor{n: n}
}

// EventsUpTo returns a copy of the replayed prefix.
func (r *EventReplayer) EventsUpTo(cursor EventCursor) []Event {
	cursor = r.MakeCursor(cursor.n)
	out := make([]Event, cursor.n)
	copy(out, r.events[:cursor.n])
	return out
}

// ProjectionAt folds the events before cursor, in log order, into a Projection.
func (r *EventReplayer) ProjectionAt(cursor EventCursor) Projection {
	p := emptyProjection()
	for _, e := range r.EventsUpTo(cursor) {
		r.apply(&p, e)
	}
	return p
}

func (r *EventReplayer) apply(p *Projection, e Event) {
	switch e := e.(type) {
	case RefUpdateEvent:
		if r.filter(e.RefName) {
			return
		}
		p.Refs[e.RefName] = e.NewOid
	case HideEvent:
		p.Hidden[e.Oid] = struct{}{}
	case UnhideEvent:
		delete(p.Hidden, e.Oid)
	case CommitEvent:
		p.Commits[e.Oid] = struct{}{}
	case RewriteEvent:
		if oid, ok := e.NewOid.NonZero(); ok {
			p.Commits[oid] = struct{}{}
		}
	default:
		panic(fmt.Sprintf("unknown event type %T", e))
	}
}

// CursorAfterTransaction returns the cursor just past the last event of tx.
// ok is false when tx has no events in the log.
func (r *EventReplayer) CursorAfterTransaction(tx EventTransactionID) (EventCursor, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].TxID() == tx {
			return EventCursor{n: i + 1}, true
		}
	}
	return EventCursor{}, false
}

// CursorBeforeTransaction returns the cursor just before the first event of tx.
func (r *EventReplayer) CursorBeforeTransaction(tx EventTransactionID) (EventCursor, bool) {
	for i, e := range r.events {
		if e.TxID() == tx {
			return EventCursor{n: i}, true
		}
	}
	return EventCursor{}, false
}

// AdvanceCursorByTransaction moves the cursor by n whole transactions
// (negative n moves back), stopping at either end of the log.
func (r *EventReplayer) AdvanceCursorByTransaction(cursor EventCursor, n int) EventCursor {
	pos := r.MakeCursor(cursor.n).n
	for ; n > 0 && pos < len(r.events); n-- {
		tx := r.events[pos].TxID()
		for pos < len(r.events) && r.events[pos].TxID() == tx {
			pos++
		}
	}
	for ; n < 0 && pos > 0; n++ {
		tx := r.events[pos-1].TxID()
		for pos > 0 && r.events[pos-1].TxID() == tx {
			pos--
		}
	}
	return EventCursor{n: pos}
}

// TxEventsBeforeCursor returns the transaction whose events end at cursor.
func (r *EventReplayer) TxEventsBeforeCursor(cursor EventCursor) (EventTransactionID, []Event, bool) {
	end := r.MakeCursor(cursor.n).n
	if end == 0 {
		return 0, nil, false
	}
	tx := r.events[end-1].TxID()
	start := end
	for start > 0 && r.events[start-1].TxID() == tx {
		start--
	}
	out := make([]Event, end-start)
	copy(out, r.events[start:end])
	return tx, out, true
}

// latestRewrite finds the rewrite of oid before cursor with the highest
// transaction id; later log position breaks ties.
func (r *EventReplayer) latestRewrite(cursor EventCursor, oid NonZeroOid) (RewriteEvent, bool) {
	end := r.MakeCursor(cursor.n).n
	var best RewriteEvent
	found := false
	for _, i := range r.rewrites[oid] {
		if i >= end {
			break
		}
		rw := r.events[i].(RewriteEvent)
		if !found || rw.Tx >= best.Tx {
			best = rw
			found = true
		}
	}
	return best, found
}

// FindRewriteTarget follows rewrites of oid to the commit that currently
// replaces it. A zero result means the line of history ended in a drop.
func (r *EventReplayer) FindRewriteTarget(cursor EventCursor, oid NonZeroOid) (MaybeZeroOid, bool) {
	rw, ok := r.latestRewrite(cursor, oid)
	if !ok {
		return MaybeZeroOid{}, false
	}

	seen := map[NonZeroOid]bool{oid: true}
	target := rw.NewOid
	for {
		next, ok := target.NonZero()
		if !ok || seen[next] {
			return target, true
		}
		seen[next] = true

		rw, ok := r.latestRewrite(cursor, next)
		if !ok {
			return target, true
		}
		target = rw.NewOid
	}
}

// IsRewritten reports whether oid was the old side of any rewrite before cursor.
func (r *EventReplayer) IsRewritten(cursor EventCursor, oid NonZeroOid) bool {
	_, ok := r.latestRewrite(cursor, oid)
	return ok
}
