package stages

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/shared/utils"
)

// ignoreFiles are read from the root, first to last, rules accumulating.
var ignoreFiles = []string{".gitignore", ".satchelignore"}

// Workspace validates the run's root and collects ignore rules. A missing
// or unreadable root is a validation failure and aborts the run.
type Workspace struct{}

func (w *Workspace) StageName() string { return "workspace" }

func (w *Workspace) Validate(input interface{}) error {
	b, err := asBundle(input)
	if err != nil {
		return err
	}
	if err := utils.ValidateRoot(b.Root); err != nil {
		return err
	}
	if b.Profile == nil {
		return fmt.Errorf("bundle has no profile")
	}
	return b.Profile.Validate()
}

func (w *Workspace) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(b.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	b.Root = abs

	for _, name := range ignoreFiles {
		rules, err := readIgnoreFile(filepath.Join(b.Root, name))
		if err != nil {
			return nil, err
		}
		b.Ignore = append(b.Ignore, rules...)
	}

	pipeline.Logf(ctx, "info", "workspace %s (%d ignore rules)", b.Root, len(b.Ignore))
	return b, nil
}

// readIgnoreFile parses one gitignore-style file into doublestar patterns.
// A missing file contributes nothing.
func readIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	var rules []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rules = append(rules, ignoreToGlobs(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rules, nil
}

// ignoreToGlobs translates one gitignore line into doublestar globs over
// root-relative slash paths. Negation and escape syntax are not supported;
// such lines are dropped rather than misapplied.
func ignoreToGlobs(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return nil
	}

	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")

	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")
	if !anchored && !strings.Contains(line, "/") {
		line = "**/" + line
	}

	globs := []string{line, line + "/**"}
	if dirOnly {
		globs = globs[1:]
	}
	return globs
}
