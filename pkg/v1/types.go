package v1

import "time"

// Commit is one commit of the smartlog.
type Commit struct {
	Oid      string   `json:"oid"`
	Parents  []string `json:"parents"`
	Summary  string   `json:"summary"`
	Branches []string `json:"branches,omitempty"`
	IsHead   bool     `json:"is_head"`
	IsMain   bool     `json:"is_main"`
	IsHidden bool     `json:"is_hidden"`
	// RewrittenAs is set for obsolete commits; all zeros means dropped.
	RewrittenAs string `json:"rewritten_as,omitempty"`
}

// Transaction is one entry of the event log.
type Transaction struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Events    []string  `json:"events"`
}
