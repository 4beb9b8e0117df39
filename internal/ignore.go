package internal

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// RefFilter reports whether updates to a reference should be ignored.
type RefFilter func(refName string) bool

// DefaultIgnoredRefs are transient refs Git moves during rebases, merges and
// fetches; tracking them only adds noise.
var DefaultIgnoredRefs = []string{
	"ORIG_HEAD",
	"CHERRY_PICK_HEAD",
	"REBASE_HEAD",
	"FETCH_HEAD",
	"AUTO_MERGE",
	"refs/rewritten/**",
}

// RefExclusionPolicy matches ref names against gitignore-style patterns,
// treating each "/"-separated component as a path element.
type RefExclusionPolicy struct {
	patterns []gitignore.Pattern
}

func NewRefExclusionPolicy(patterns []string) *RefExclusionPolicy {
	p := &RefExclusionPolicy{}
	for _, line := range patterns {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p.patterns = append(p.patterns, gitignore.ParsePattern(line, nil))
	}
	return p
}

// Excludes applies the patterns in order; a later "!pattern" can re-include a ref.
func (p *RefExclusionPolicy) Excludes(refName string) bool {
	parts := strings.Split(refName, "/")

	excluded := false
	for _, pat := range p.patterns {
		switch pat.Match(parts, false) {
		case gitignore.Exclude:
			excluded = true
		case gitignore.Include:
			excluded = false
		}
	}
	return excluded
}

func (p *RefExclusionPolicy) Filter() RefFilter {
	return p.Excludes
}
