package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestBuiltinResolution(t *testing.T) {
	r := NewResolver("")

	prof, err := r.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "default", prof.Name)
	assert.Equal(t, BinaryDrop, prof.Binary)
	assert.Equal(t, "markdown", prof.Format)
	assert.Contains(t, prof.Exclude, "**/node_modules/**")
}

func TestBuiltinInheritance(t *testing.T) {
	r := NewResolver("")

	slim, err := r.Resolve("slim")
	require.NoError(t, err)

	// Child list entries append after the parent's.
	assert.Contains(t, slim.Exclude, "**/node_modules/**")
	assert.Contains(t, slim.Exclude, "**/*_test.go")
	// Child scalars override.
	assert.Equal(t, int64(128*1024), slim.MaxFileSize)
	assert.Equal(t, 100000, slim.TokenBudget)
	// Inherited scalars survive.
	assert.Equal(t, "markdown", slim.Format)
	assert.Equal(t, CharsetConvert, slim.Charset)
}

func TestUserProfileOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "default.yaml", `
include:
  - "**/*.go"
format: json
`)

	prof, err := NewResolver(dir).Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "default", prof.Name)
	assert.Equal(t, "json", prof.Format)
	assert.Equal(t, []string{"**/*.go"}, prof.Include)
}

func TestExplicitPathResolution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.yaml")
	writeProfile(t, dir, "mine.yaml", `
name: mine
include:
  - "src/**"
format: xml
`)

	prof, err := NewResolver("").Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "mine", prof.Name)
	assert.Equal(t, "xml", prof.Format)
}

func TestExtendsUserProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "base.yaml", `
include:
  - "**/*.go"
max_file_size: 1024
`)
	writeProfile(t, dir, "child.yaml", `
extends: base
include:
  - "**/*.md"
format: plain
`)

	prof, err := NewResolver(dir).Resolve("child")
	require.NoError(t, err)
	assert.Equal(t, "child", prof.Name)
	assert.Equal(t, []string{"**/*.go", "**/*.md"}, prof.Include)
	assert.Equal(t, int64(1024), prof.MaxFileSize)
	assert.Equal(t, "plain", prof.Format)
}

func TestInheritanceCycle(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "a.yaml", "extends: b\n")
	writeProfile(t, dir, "b.yaml", "extends: a\n")

	_, err := NewResolver(dir).Resolve("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestUnknownProfile(t *testing.T) {
	_, err := NewResolver(t.TempDir()).Resolve("nope")
	assert.Error(t, err)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		prof  Profile
		field string
	}{
		{
			name:  "bad pattern",
			prof:  Profile{Name: "p", Include: []string{"[unclosed"}},
			field: "include",
		},
		{
			name:  "bad binary policy",
			prof:  Profile{Name: "p", Binary: "zip"},
			field: "binary",
		},
		{
			name:  "bad charset policy",
			prof:  Profile{Name: "p", Charset: "latin1"},
			field: "charset",
		},
		{
			name:  "bad format",
			prof:  Profile{Name: "p", Format: "pdf"},
			field: "format",
		},
		{
			name:  "bad sort",
			prof:  Profile{Name: "p", SortBy: "random"},
			field: "sort_by",
		},
		{
			name:  "negative budget",
			prof:  Profile{Name: "p", TokenBudget: -1},
			field: "token_budget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prof.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "p", verr.Profile)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestMatches(t *testing.T) {
	prof := &Profile{
		Name:    "p",
		Include: []string{"**/*.go", "docs/**"},
		Exclude: []string{"**/*_test.go", "**/vendor/**"},
	}

	assert.True(t, prof.Matches("internal/pipeline/pipeline.go"))
	assert.True(t, prof.Matches("docs/guide.md"))
	assert.False(t, prof.Matches("internal/pipeline/pipeline_test.go"))
	assert.False(t, prof.Matches("vendor/pkg/mod.go"))
	assert.False(t, prof.Matches("README.md"))

	// Empty include selects everything not excluded.
	open := &Profile{Name: "open", Exclude: []string{"*.bin"}}
	assert.True(t, open.Matches("anything/at/all.txt"))
	assert.False(t, open.Matches("blob.bin"))
}

func TestWantsSummary(t *testing.T) {
	off := &Profile{Name: "p"}
	assert.False(t, off.WantsSummary("main.go"))

	all := &Profile{Name: "p", Summarize: true}
	assert.True(t, all.WantsSummary("main.go"))

	scoped := &Profile{Name: "p", Summarize: true, SummarizeGlobs: []string{"**/*.go"}}
	assert.True(t, scoped.WantsSummary("cmd/main.go"))
	assert.False(t, scoped.WantsSummary("README.md"))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "mine.yaml", "include: ['**']\n")

	names := NewResolver(dir).List()
	assert.Contains(t, names, "default")
	assert.Contains(t, names, "slim")
	assert.Contains(t, names, "full")
	assert.Contains(t, names, "mine")
}
