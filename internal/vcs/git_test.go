package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelworks/satchel/internal/bundle"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	return dir
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	require.NoError(t, cmd.Run(), "git %v", args)
}

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestOpenOutsideRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := Open(context.Background(), os.TempDir(), nil)
	assert.Error(t, err)
}

func TestStatusClassification(t *testing.T) {
	dir := initRepo(t)
	write(t, dir, "committed.txt", "v1\n")
	gitRun(t, dir, "add", "committed.txt")
	gitRun(t, dir, "commit", "-q", "-m", "initial")

	write(t, dir, "committed.txt", "v2\n")
	write(t, dir, "new.txt", "fresh\n")

	repo, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)

	statuses, err := repo.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, bundle.GitModified, statuses["committed.txt"])
	assert.Equal(t, bundle.GitUntracked, statuses["new.txt"])
}

func TestCleanFilesAbsent(t *testing.T) {
	dir := initRepo(t)
	write(t, dir, "stable.txt", "v1\n")
	gitRun(t, dir, "add", "stable.txt")
	gitRun(t, dir, "commit", "-q", "-m", "initial")

	repo, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)

	statuses, err := repo.Status(context.Background())
	require.NoError(t, err)
	_, present := statuses["stable.txt"]
	assert.False(t, present)
}

func TestTracked(t *testing.T) {
	dir := initRepo(t)
	write(t, dir, "in.txt", "v1\n")
	write(t, dir, "out.txt", "v1\n")
	gitRun(t, dir, "add", "in.txt")
	gitRun(t, dir, "commit", "-q", "-m", "initial")

	repo, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)

	tracked, err := repo.Tracked(context.Background())
	require.NoError(t, err)
	assert.True(t, tracked["in.txt"])
	assert.False(t, tracked["out.txt"])
}

func TestRel(t *testing.T) {
	dir := initRepo(t)
	repo, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)

	rel, err := repo.Rel(filepath.Join(repo.Dir, "sub", "file.go"))
	require.NoError(t, err)
	assert.Equal(t, "sub/file.go", rel)
}
