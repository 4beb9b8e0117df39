package v1

import (
	"context"
	"fmt"

	"github.com/4thel00z/keeper/internal"
)

// Client provides programmatic access to a repository's event log and smartlog.
type Client struct {
	smartlog   *internal.SmartlogService
	visibility *internal.VisibilityService
	history    *internal.HistoryService
	renderer   *internal.SmartlogRenderer
}

// New creates a new Client with the given options. The repository is opened
// per call, so a Client stays valid while hooks write to the log.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{logger: internal.NopLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	open := internal.NewEnvOpenerAt(internal.NewLocationResolver(), cfg.dir, cfg.logger)
	renderer := internal.NewSmartlogRenderer(internal.PlainSmartlogStyles())

	return &Client{
		smartlog:   internal.NewSmartlogService(open),
		visibility: internal.NewVisibilityService(open),
		history:    internal.NewHistoryService(open, renderer),
		renderer:   renderer,
	}, nil
}

// Smartlog returns the commits the smartlog shows right now, oldest first.
func (c *Client) Smartlog(ctx context.Context) ([]Commit, error) {
	return c.SmartlogAt(ctx, 0)
}

// SmartlogAt returns the smartlog as it was right after transaction tx.
func (c *Client) SmartlogAt(ctx context.Context, tx int64) ([]Commit, error) {
	sl, err := c.smartlog.Build(ctx, internal.SmartlogInput{AtTx: internal.EventTransactionID(tx)})
	if err != nil {
		return nil, fmt.Errorf("smartlog: %w", err)
	}

	entries := sl.Entries()
	commits := make([]Commit, 0, len(entries))
	for _, e := range entries {
		commits = append(commits, Commit{
			Oid:         e.Oid,
			Parents:     e.Parents,
			Summary:     e.Summary,
			Branches:    e.Branches,
			IsHead:      e.IsHead,
			IsMain:      e.IsMain,
			IsHidden:    e.IsHidden,
			RewrittenAs: e.RewrittenAs,
		})
	}
	return commits, nil
}

// RenderSmartlog draws the current smartlog as plain text.
func (c *Client) RenderSmartlog(ctx context.Context) (string, error) {
	sl, err := c.smartlog.Build(ctx, internal.SmartlogInput{})
	if err != nil {
		return "", fmt.Errorf("smartlog: %w", err)
	}
	return c.renderer.Render(sl), nil
}

// Hide hides the given revisions and returns the full oids affected.
func (c *Client) Hide(ctx context.Context, revisions ...string) ([]string, error) {
	oids, err := c.visibility.Hide(ctx, internal.VisibilityInput{Revisions: revisions})
	if err != nil {
		return nil, fmt.Errorf("hide: %w", err)
	}
	return oidStrings(oids), nil
}

// Unhide reverses Hide.
func (c *Client) Unhide(ctx context.Context, revisions ...string) ([]string, error) {
	oids, err := c.visibility.Unhide(ctx, internal.VisibilityInput{Revisions: revisions})
	if err != nil {
		return nil, fmt.Errorf("unhide: %w", err)
	}
	return oidStrings(oids), nil
}

// Transactions returns up to limit transactions, newest first. A limit <= 0 returns all.
func (c *Client) Transactions(ctx context.Context, limit int) ([]Transaction, error) {
	entries, err := c.history.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}

	txs := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		events := make([]string, 0, len(e.Events))
		for _, ev := range e.Events {
			events = append(events, internal.Describe(ev))
		}
		txs = append(txs, Transaction{
			ID:        int64(e.ID),
			Message:   e.Message,
			Timestamp: e.Timestamp,
			Events:    events,
		})
	}
	return txs, nil
}

// Diff returns a line diff of the smartlog before and after transaction tx.
func (c *Client) Diff(ctx context.Context, tx int64) (string, error) {
	return c.history.Diff(ctx, internal.EventTransactionID(tx))
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}

func oidStrings(oids []internal.NonZeroOid) []string {
	out := make([]string, 0, len(oids))
	for _, oid := range oids {
		out = append(out, oid.String())
	}
	return out
}
