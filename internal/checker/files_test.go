package checker

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	defaultInclude = []string{"**/*.mg"}
	defaultExclude = []string{".git/**", "vendor/**", "node_modules/**"}
)

func TestExpandPathsWalksDirectories(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.mg":              "q(1).",
		"sub/b.mg":          "q(2).",
		"sub/deep/c.mg":     "q(3).",
		"notes.txt":         "x",
		"vendor/v.mg":       "q(4).",
		"sub/vendor/w.mg":   "q(5).",
		".git/objects/x.mg": "q(6).",
	})

	got, err := ExpandPaths([]string{root}, defaultInclude, defaultExclude)
	require.NoError(t, err)

	want := []string{
		filepath.Join(root, "a.mg"),
		filepath.Join(root, "sub", "b.mg"),
		filepath.Join(root, "sub", "deep", "c.mg"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExpandPaths mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandPathsExplicitFileAndDedup(t *testing.T) {
	root := writeTree(t, map[string]string{"a.mg": "q(1).", "rules.txt": "q(1)."})
	a := filepath.Join(root, "a.mg")
	txt := filepath.Join(root, "rules.txt")

	got, err := ExpandPaths([]string{txt, a, root, a}, defaultInclude, defaultExclude)
	require.NoError(t, err)
	// explicit files bypass include filters
	assert.Equal(t, []string{a, txt}, got)
}

func TestExpandPathsGlob(t *testing.T) {
	root := writeTree(t, map[string]string{
		"x/a.mg":        "q(1).",
		"x/y/b.mg":      "q(2).",
		"x/y/c.txt":     "",
		"x/vendor/d.mg": "q(3).",
	})

	got, err := ExpandPaths([]string{filepath.Join(root, "x", "**", "*.mg")}, defaultInclude, defaultExclude)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "x", "a.mg"),
		filepath.Join(root, "x", "y", "b.mg"),
	}, got)
}

func TestExpandPathsMissing(t *testing.T) {
	_, err := ExpandPaths([]string{filepath.Join(t.TempDir(), "nope.mg")}, defaultInclude, defaultExclude)
	assert.Error(t, err)
}

func TestMatchAny(t *testing.T) {
	tests := []struct {
		patterns []string
		name     string
		want     bool
	}{
		{[]string{"**/*.mg"}, "a.mg", true},
		{[]string{"**/*.mg"}, "a/b/c.mg", true},
		{[]string{"*.mg"}, "a/b/c.mg", true},
		{[]string{"*.mg"}, "a/b/c.txt", false},
		{[]string{"vendor/**"}, "vendor/_", true},
		{[]string{"vendor/**"}, "lib/vendor/x.mg", true},
		{[]string{"vendor/**"}, "vendors/x.mg", false},
		{nil, "a.mg", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchAny(tt.patterns, tt.name), "%v ~ %s", tt.patterns, tt.name)
	}
}
