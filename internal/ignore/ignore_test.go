package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		want     bool
	}{
		{"extension wildcard", []string{"*.tmp"}, "notes/draft.tmp", false, true},
		{"extension wildcard miss", []string{"*.tmp"}, "notes/draft.pdf", false, false},
		{"single char", []string{"v?.txt"}, "v1.txt", false, true},
		{"directory pattern hides files below", []string{"scans/"}, "scans/page1.pdf", false, true},
		{"directory pattern skips file of same name", []string{"scans/"}, "scans", false, false},
		{"directory pattern matches directory", []string{"scans/"}, "scans", true, true},
		{"rooted pattern", []string{"/drafts"}, "drafts/a.txt", false, true},
		{"rooted pattern not nested", []string{"/drafts"}, "law/drafts/a.txt", false, false},
		{"path pattern is rooted", []string{"law/old"}, "law/old/a.txt", false, true},
		{"double star prefix", []string{"**/archive"}, "a/b/archive/x.txt", false, true},
		{"double star middle", []string{"law/**/draft.txt"}, "law/2024/q1/draft.txt", false, true},
		{"negation re-includes", []string{"*.pdf", "!keep.pdf"}, "keep.pdf", false, false},
		{"later rule wins", []string{"!keep.pdf", "*.pdf"}, "keep.pdf", false, true},
		{"comments and blanks ignored", []string{"# *.pdf", "", "   "}, "a.pdf", false, false},
		{"escaped hash", []string{`\#notes.txt`}, "#notes.txt", false, true},
		{"character class", []string{"report[0-9].txt"}, "report7.txt", false, true},
		{"dot-slash prefix stripped", []string{"/a.txt"}, "./a.txt", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a matcher over the patterns
			m := New(tt.patterns...)

			// When: matching the path
			got := m.Match(tt.path, tt.isDir)

			// Then: the result matches gitignore semantics
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_SkipsEmptyRules(t *testing.T) {
	m := New("", "# comment", "*.tmp", "/", "!", "bad[z-a].txt")
	assert.Equal(t, 1, m.Len())
}

func TestLoad_ReadsIgnoreFile(t *testing.T) {
	// Given: a directory with a .docragignore
	dir := t.TempDir()
	content := "# generated\n*.bak\nprivate/\n!private/public.txt\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	// When: loading it
	m, err := Load(dir)

	// Then: its rules apply
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Match("old.bak", false))
	assert.True(t, m.Match("private", true))
	assert.False(t, m.Match("law.txt", false))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	m, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Match("anything.txt", false))
}
