package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefExclusionPolicy_Defaults(t *testing.T) {
	p := NewRefExclusionPolicy(DefaultIgnoredRefs)

	tests := []struct {
		ref      string
		excluded bool
	}{
		{"ORIG_HEAD", true},
		{"FETCH_HEAD", true},
		{"REBASE_HEAD", true},
		{"CHERRY_PICK_HEAD", true},
		{"AUTO_MERGE", true},
		{"refs/rewritten/onto", true},
		{"refs/rewritten/label/x", true},
		{"HEAD", false},
		{"refs/heads/main", false},
		{"refs/heads/feature/x", false},
		{"refs/tags/v1.0", false},
		{"refs/remotes/origin/main", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.excluded, p.Excludes(tt.ref))
		})
	}
}

func TestRefExclusionPolicy_Empty(t *testing.T) {
	p := NewRefExclusionPolicy(nil)
	if p.Excludes("ORIG_HEAD") {
		t.Error("empty policy should not exclude anything")
	}
}

func TestRefExclusionPolicy_SkipsCommentsAndBlanks(t *testing.T) {
	p := NewRefExclusionPolicy([]string{"", "  ", "# refs/heads/**"})
	assert.False(t, p.Excludes("refs/heads/main"))
}

func TestRefExclusionPolicy_Glob(t *testing.T) {
	p := NewRefExclusionPolicy([]string{"refs/remotes/**"})

	assert.True(t, p.Excludes("refs/remotes/origin/main"))
	assert.False(t, p.Excludes("refs/heads/main"))
}

func TestRefExclusionPolicy_Negation(t *testing.T) {
	p := NewRefExclusionPolicy([]string{"refs/remotes/**", "!refs/remotes/origin/main"})

	assert.True(t, p.Excludes("refs/remotes/origin/dev"))
	assert.False(t, p.Excludes("refs/remotes/origin/main"))
}

func TestRefExclusionPolicy_LaterPatternWins(t *testing.T) {
	p := NewRefExclusionPolicy([]string{"!refs/tags/v1", "refs/tags/**"})
	assert.True(t, p.Excludes("refs/tags/v1"), "a negation only re-includes what earlier patterns excluded")
}

func TestRefExclusionPolicy_Filter(t *testing.T) {
	filter := NewRefExclusionPolicy([]string{"FETCH_HEAD"}).Filter()
	assert.True(t, filter("FETCH_HEAD"))
	assert.False(t, filter("HEAD"))
}
