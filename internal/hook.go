package internal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const HookMarker = "# keeper: managed hook"

const (
	HookPostCommit           = "post-commit"
	HookPostRewrite          = "post-rewrite"
	HookPostCheckout         = "post-checkout"
	HookReferenceTransaction = "reference-transaction"
)

// ManagedHooks lists the Git hooks keeper installs.
var ManagedHooks = []string{
	HookPostCommit,
	HookPostRewrite,
	HookPostCheckout,
	HookReferenceTransaction,
}

// HookScript returns the shell shim for a hook. Git's arguments and stdin are
// forwarded untouched.
func HookScript(hookType string) string {
	return fmt.Sprintf("#!/bin/sh\n%s\nexec keeper hook %s \"$@\"\n", HookMarker, hookType)
}

// IsManagedHook checks if the given script content was written by keeper.
func IsManagedHook(content string) bool {
	return strings.Contains(content, HookMarker)
}

// RewritePair is one "old new" line of post-rewrite input.
type RewritePair struct {
	Old NonZeroOid
	New MaybeZeroOid
}

// ParseRewriteLine parses one post-rewrite line. It must carry at least an
// old and a new oid; anything after them is ignored.
func ParseRewriteLine(line string) (RewritePair, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return RewritePair{}, fmt.Errorf("invalid rewrite line: %q", line)
	}
	oldOid, err := ParseNonZeroOid(fields[0])
	if err != nil {
		return RewritePair{}, fmt.Errorf("invalid rewrite line %q: %w", line, err)
	}
	newOid, err := ParseMaybeZeroOid(fields[1])
	if err != nil {
		return RewritePair{}, fmt.Errorf("invalid rewrite line %q: %w", line, err)
	}
	return RewritePair{Old: oldOid, New: newOid}, nil
}

// ParseRewriteLines reads post-rewrite stdin. Malformed lines are handed to
// skip, when set, and left out; only a read failure is an error.
func ParseRewriteLines(r io.Reader, skip func(error)) ([]RewritePair, error) {
	var pairs []RewritePair
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pair, err := ParseRewriteLine(line)
		if err != nil {
			if skip != nil {
				skip(err)
			}
			continue
		}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rewrite lines: %w", err)
	}
	return pairs, nil
}

// RewriteEvents turns parsed pairs into events of one transaction.
func RewriteEvents(meta EventMeta, pairs []RewritePair) []Event {
	events := make([]Event, 0, len(pairs))
	for _, p := range pairs {
		events = append(events, RewriteEvent{EventMeta: meta, OldOid: p.Old, NewOid: p.New})
	}
	return events
}

// ParseReferenceTransactionLine parses one "<old> <new> <ref>" line. It returns
// nil, nil for refs the filter excludes.
func ParseReferenceTransactionLine(line string, meta EventMeta, filter RefFilter) (*RefUpdateEvent, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), " ")
	if len(fields) != 3 {
		return nil, fmt.Errorf("unexpected number of fields in reference-transaction line: %q", line)
	}

	oldValue, newValue, refName := fields[0], fields[1], fields[2]
	if filter != nil && filter(refName) {
		return nil, nil
	}

	oldOid, err := ParseMaybeZeroOid(oldValue)
	if err != nil {
		return nil, fmt.Errorf("reference-transaction old value: %w", err)
	}
	newOid, err := ParseMaybeZeroOid(newValue)
	if err != nil {
		return nil, fmt.Errorf("reference-transaction new value: %w", err)
	}

	return &RefUpdateEvent{
		EventMeta: meta,
		RefName:   refName,
		OldOid:    oldOid,
		NewOid:    newOid,
	}, nil
}

// DescribeRef names a reference the way a person would.
func DescribeRef(refName string) string {
	switch {
	case strings.HasPrefix(refName, "refs/heads/"):
		return "branch " + strings.TrimPrefix(refName, "refs/heads/")
	case strings.HasPrefix(refName, "refs/remotes/"):
		return "remote branch " + strings.TrimPrefix(refName, "refs/remotes/")
	case strings.HasPrefix(refName, "refs/tags/"):
		return "tag " + strings.TrimPrefix(refName, "refs/tags/")
	default:
		return "ref " + refName
	}
}

func Pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
