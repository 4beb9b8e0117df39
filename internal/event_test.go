package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestampOf(t *testing.T) {
	ts := time.Unix(1700000000, 500_000_000)
	assert.InDelta(t, 1700000000.5, TimestampOf(ts), 1e-6)
	assert.WithinDuration(t, ts, timeOf(TimestampOf(ts)), time.Millisecond)
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(42, time.Unix(10, 0))
	assert.Equal(t, EventTransactionID(42), meta.TxID())
	assert.Equal(t, 10.0, meta.Timestamp())
}

func TestDescribe(t *testing.T) {
	meta := NewMeta(1, testEpoch)
	a, b := testOid(1), testOid(2)

	tests := []struct {
		event Event
		want  string
	}{
		{CommitEvent{EventMeta: meta, Oid: a}, "commit " + a.Short()},
		{RewriteEvent{EventMeta: meta, OldOid: a, NewOid: b.Maybe()}, "rewrite " + a.Short() + " -> " + b.Short()},
		{RewriteEvent{EventMeta: meta, OldOid: a, NewOid: ZeroOid}, "drop " + a.Short()},
		{RefUpdateEvent{EventMeta: meta, RefName: "refs/heads/main", OldOid: ZeroOid, NewOid: a.Maybe()},
			"ref refs/heads/main: 0 -> " + a.Short()},
		{HideEvent{EventMeta: meta, Oid: a}, "hide " + a.Short()},
		{UnhideEvent{EventMeta: meta, Oid: a}, "unhide " + a.Short()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.event))
	}
}
