// Package vcs reads git working-tree state through the git porcelain.
// It shells out rather than linking a git library: the porcelain formats
// are stable and the binary is already present wherever a repository is.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/logging"
	"go.uber.org/zap"
)

// Repo inspects one git repository rooted at Dir.
type Repo struct {
	Dir    string
	logger *logging.Logger
}

// Open locates the repository containing dir. It returns an error when dir
// is not inside a work tree or git is not installed.
func Open(ctx context.Context, dir string, logger *logging.Logger) (*Repo, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}

	root := strings.TrimSpace(string(out))
	return &Repo{Dir: root, logger: logger.Scoped("vcs")}, nil
}

// Status returns the working-tree status of every changed or untracked
// file, keyed by repository-relative slash path. Clean tracked files do
// not appear in the map.
func (r *Repo) Status(ctx context.Context) (map[string]bundle.GitStatus, error) {
	out, err := runGit(ctx, r.Dir, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	statuses := make(map[string]bundle.GitStatus)
	records := bytes.Split(out, []byte{0})
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 4 {
			continue
		}

		// Two status letters, a space, then the path. Renames carry the
		// original path in the following NUL-separated record.
		code := string(rec[:2])
		path := string(rec[3:])
		if strings.HasPrefix(code, "R") || strings.HasPrefix(code, "C") {
			i++
		}

		statuses[path] = classify(code)
	}

	r.logger.Debug("git status read",
		zap.String("root", r.Dir),
		zap.Int("entries", len(statuses)))

	return statuses, nil
}

// Tracked returns the set of paths git tracks, keyed by
// repository-relative slash path.
func (r *Repo) Tracked(ctx context.Context) (map[string]bool, error) {
	out, err := runGit(ctx, r.Dir, "ls-files", "-z")
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	tracked := make(map[string]bool)
	for _, rec := range bytes.Split(out, []byte{0}) {
		if len(rec) > 0 {
			tracked[string(rec)] = true
		}
	}
	return tracked, nil
}

// Rel converts an absolute path to the repository-relative slash form used
// as the status map key.
func (r *Repo) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(r.Dir, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func classify(code string) bundle.GitStatus {
	switch {
	case code == "??":
		return bundle.GitUntracked
	case code == "!!":
		return bundle.GitIgnored
	default:
		return bundle.GitModified
	}
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w", msg, err)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
