package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	eventTypeCommit    = "commit"
	eventTypeRewrite   = "rewrite"
	eventTypeRefUpdate = "ref-move"
	eventTypeHide      = "hide"
	eventTypeUnhide    = "unhide"
)

// EventTransaction is the allocation record for one transaction id.
type EventTransaction struct {
	ID        EventTransactionID
	Timestamp time.Time
	Message   string
}

// EventLogDB is the durable, append-only event log.
type EventLogDB struct {
	db *sql.DB
}

func NewEventLogDB(db *sql.DB) *EventLogDB {
	return &EventLogDB{db: db}
}

// MakeTransactionID allocates a fresh transaction id and records when and by
// which command it was created. Call it once per logical operation, before
// building that operation's events.
func (l *EventLogDB) MakeTransactionID(ctx context.Context, now time.Time, commandName string) (EventTransactionID, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO event_transactions (timestamp, message) VALUES (?, ?)`,
		TimestampOf(now), commandName,
	)
	if err != nil {
		return 0, fmt.Errorf("allocate transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read transaction id: %w", err)
	}
	return EventTransactionID(id), nil
}

// AddEvents appends all events in one transaction: either all become durable
// or none do.
func (l *EventLogDB) AddEvents(ctx context.Context, events []Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	known := make(map[EventTransactionID]bool)
	for _, e := range events {
		if !known[e.TxID()] {
			var exists int
			err = tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM event_transactions WHERE event_tx_id = ?`, int64(e.TxID()),
			).Scan(&exists)
			if err != nil {
				return fmt.Errorf("check transaction %d: %w", e.TxID(), err)
			}
			if exists == 0 {
				return fmt.Errorf("%w: %d", ErrUnknownTransaction, e.TxID())
			}
			known[e.TxID()] = true
		}

		row := encodeEvent(e)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (event_tx_id, timestamp, type, old_ref, new_ref, ref_name, message)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(row.txID), row.timestamp, row.typ, row.oldRef, row.newRef, row.refName, row.message,
		)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// AllEvents returns the whole log in append order.
func (l *EventLogDB) AllEvents(ctx context.Context) ([]Event, error) {
	return l.queryEvents(ctx, `SELECT event_tx_id, timestamp, type, old_ref, new_ref, ref_name, message
		FROM events ORDER BY id`)
}

func (l *EventLogDB) EventsForTransaction(ctx context.Context, id EventTransactionID) ([]Event, error) {
	return l.queryEvents(ctx, `SELECT event_tx_id, timestamp, type, old_ref, new_ref, ref_name, message
		FROM events WHERE event_tx_id = ? ORDER BY id`, int64(id))
}

// Transactions lists allocated transactions, newest first. A limit <= 0 lists all.
func (l *EventLogDB) Transactions(ctx context.Context, limit int) ([]EventTransaction, error) {
	query := `SELECT event_tx_id, timestamp, message FROM event_transactions ORDER BY event_tx_id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []EventTransaction
	for rows.Next() {
		var id int64
		var ts float64
		var msg string
		if err := rows.Scan(&id, &ts, &msg); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, EventTransaction{
			ID:        EventTransactionID(id),
			Timestamp: timeOf(ts),
			Message:   msg,
		})
	}
	return txs, rows.Err()
}

func (l *EventLogDB) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var r eventRow
		var txID int64
		if err := rows.Scan(&txID, &r.timestamp, &r.typ, &r.oldRef, &r.newRef, &r.refName, &r.message); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.txID = EventTransactionID(txID)

		e, err := decodeEvent(r)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

type eventRow struct {
	txID      EventTransactionID
	timestamp float64
	typ       string
	oldRef    sql.NullString
	newRef    sql.NullString
	refName   sql.NullString
	message   sql.NullString
}

func encodeEvent(e Event) eventRow {
	r := eventRow{txID: e.TxID(), timestamp: e.Timestamp()}
	switch e := e.(type) {
	case CommitEvent:
		r.typ = eventTypeCommit
		r.oldRef = nullString(e.Oid.String())
	case RewriteEvent:
		r.typ = eventTypeRewrite
		r.oldRef = nullString(e.OldOid.String())
		r.newRef = nullString(e.NewOid.String())
	case RefUpdateEvent:
		r.typ = eventTypeRefUpdate
		r.refName = nullString(e.RefName)
		r.oldRef = nullString(e.OldOid.String())
		r.newRef = nullString(e.NewOid.String())
		r.message = nullString(e.Message)
	case HideEvent:
		r.typ = eventTypeHide
		r.oldRef = nullString(e.Oid.String())
		r.message = nullString(e.Reason)
	case UnhideEvent:
		r.typ = eventTypeUnhide
		r.oldRef = nullString(e.Oid.String())
		r.message = nullString(e.Reason)
	default:
		panic(fmt.Sprintf("unknown event type %T", e))
	}
	return r
}

func decodeEvent(r eventRow) (Event, error) {
	meta := EventMeta{At: r.timestamp, Tx: r.txID}
	corrupt := func(err error) error {
		return fmt.Errorf("%w: %s event in transaction %d: %v", ErrCorruptEventLog, r.typ, r.txID, err)
	}

	switch r.typ {
	case eventTypeCommit:
		oid, err := ParseNonZeroOid(r.oldRef.String)
		if err != nil {
			return nil, corrupt(err)
		}
		return CommitEvent{EventMeta: meta, Oid: oid}, nil

	case eventTypeRewrite:
		oldOid, err := ParseNonZeroOid(r.oldRef.String)
		if err != nil {
			return nil, corrupt(err)
		}
		newOid, err := ParseMaybeZeroOid(r.newRef.String)
		if err != nil {
			return nil, corrupt(err)
		}
		return RewriteEvent{EventMeta: meta, OldOid: oldOid, NewOid: newOid}, nil

	case eventTypeRefUpdate:
		if !r.refName.Valid || r.refName.String == "" {
			return nil, corrupt(errors.New("missing ref name"))
		}
		oldOid, err := ParseMaybeZeroOid(r.oldRef.String)
		if err != nil {
			return nil, corrupt(err)
		}
		newOid, err := ParseMaybeZeroOid(r.newRef.String)
		if err != nil {
			return nil, corrupt(err)
		}
		return RefUpdateEvent{
			EventMeta: meta,
			RefName:   r.refName.String,
			OldOid:    oldOid,
			NewOid:    newOid,
			Message:   r.message.String,
		}, nil

	case eventTypeHide, eventTypeUnhide:
		oid, err := ParseNonZeroOid(r.oldRef.String)
		if err != nil {
			return nil, corrupt(err)
		}
		if r.typ == eventTypeHide {
			return HideEvent{EventMeta: meta, Oid: oid, Reason: r.message.String}, nil
		}
		return UnhideEvent{EventMeta: meta, Oid: oid, Reason: r.message.String}, nil

	default:
		return nil, corrupt(errors.New("unknown event type"))
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timeOf(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
