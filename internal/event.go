package internal

import (
	"fmt"
	"time"
)

// EventTransactionID groups the events produced by one hook invocation or command.
type EventTransactionID int64

// Event is one observed change to the repository. The set of variants is
// closed: only the types in this file implement it.
type Event interface {
	TxID() EventTransactionID
	Timestamp() float64
	isEvent()
}

// EventMeta carries the fields shared by every variant.
type EventMeta struct {
	At float64
	Tx EventTransactionID
}

func (m EventMeta) TxID() EventTransactionID { return m.Tx }
func (m EventMeta) Timestamp() float64       { return m.At }

// CommitEvent records that a new commit was created.
type CommitEvent struct {
	EventMeta
	Oid NonZeroOid
}

// RewriteEvent records that OldOid was replaced by NewOid. A zero NewOid means
// the commit was dropped.
type RewriteEvent struct {
	EventMeta
	OldOid NonZeroOid
	NewOid MaybeZeroOid
}

// RefUpdateEvent records a reference moving from OldOid to NewOid.
type RefUpdateEvent struct {
	EventMeta
	RefName string
	OldOid  MaybeZeroOid
	NewOid  MaybeZeroOid
	Message string
}

// HideEvent marks a commit hidden.
type HideEvent struct {
	EventMeta
	Oid    NonZeroOid
	Reason string
}

// UnhideEvent reverses a HideEvent.
type UnhideEvent struct {
	EventMeta
	Oid    NonZeroOid
	Reason string
}

func (CommitEvent) isEvent()    {}
func (RewriteEvent) isEvent()   {}
func (RefUpdateEvent) isEvent() {}
func (HideEvent) isEvent()      {}
func (UnhideEvent) isEvent()    {}

// TimestampOf converts a wall-clock time to the float seconds stored on events.
func TimestampOf(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// NewMeta stamps an event with a transaction and time.
func NewMeta(tx EventTransactionID, now time.Time) EventMeta {
	return EventMeta{At: TimestampOf(now), Tx: tx}
}

// Describe renders a one-line description of an event for listings.
func Describe(e Event) string {
	switch e := e.(type) {
	case CommitEvent:
		return fmt.Sprintf("commit %s", e.Oid.Short())
	case RewriteEvent:
		if e.NewOid.IsZero() {
			return fmt.Sprintf("drop %s", e.OldOid.Short())
		}
		return fmt.Sprintf("rewrite %s -> %s", e.OldOid.Short(), e.NewOid.String()[:7])
	case RefUpdateEvent:
		return fmt.Sprintf("ref %s: %s -> %s", e.RefName, shortMaybe(e.OldOid), shortMaybe(e.NewOid))
	case HideEvent:
		return fmt.Sprintf("hide %s", e.Oid.Short())
	case UnhideEvent:
		return fmt.Sprintf("unhide %s", e.Oid.Short())
	default:
		panic(fmt.Sprintf("unknown event type %T", e))
	}
}

func shortMaybe(o MaybeZeroOid) string {
	if o.IsZero() {
		return "0"
	}
	return o.String()[:7]
}
