package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Resolver loads profiles by name or path and resolves inheritance.
// Resolution order for a name: an explicit path (contains a separator or
// .yml/.yaml suffix), then <dir>/<name>.yaml under the profiles directory,
// then the built-in set.
type Resolver struct {
	// Dir is the user profiles directory, usually <root>/.satchel.
	Dir string
}

// NewResolver creates a resolver rooted at the given profiles directory.
func NewResolver(dir string) *Resolver {
	return &Resolver{Dir: dir}
}

// Resolve loads a profile, walks its Extends chain, merges child over
// parent, and validates the result.
func (r *Resolver) Resolve(name string) (*Profile, error) {
	return r.resolve(name, map[string]bool{})
}

func (r *Resolver) resolve(name string, seen map[string]bool) (*Profile, error) {
	if seen[name] {
		return nil, fmt.Errorf("profile %s: inheritance cycle", name)
	}
	seen[name] = true

	prof, err := r.load(name)
	if err != nil {
		return nil, err
	}

	if prof.Extends != "" {
		parent, err := r.resolve(prof.Extends, seen)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		prof = merge(parent, prof)
	}

	if err := prof.Validate(); err != nil {
		return nil, err
	}
	return prof, nil
}

// load fetches one profile without touching its Extends chain.
func (r *Resolver) load(name string) (*Profile, error) {
	if isPath(name) {
		return r.loadFile(name)
	}

	if r.Dir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(r.Dir, name+ext)
			prof, err := r.loadFile(path)
			if err == nil {
				return prof, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if prof, ok := builtins[name]; ok {
		clone := prof
		return &clone, nil
	}

	return nil, fmt.Errorf("profile %s: not found (looked in %s and built-ins)", name, r.Dir)
}

func (r *Resolver) loadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("profile file %s: %w", path, err)
		}
		return nil, fmt.Errorf("profile file %s: %w", path, err)
	}

	var prof Profile
	if err := yaml.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("profile file %s: %w", path, err)
	}
	if prof.Name == "" {
		prof.Name = strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".yaml"), ".yml")
	}
	return &prof, nil
}

// List returns the names of available profiles: built-ins plus any *.yaml
// in the profiles directory.
func (r *Resolver) List() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}

	if r.Dir != "" {
		entries, err := os.ReadDir(r.Dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				base := e.Name()
				if strings.HasSuffix(base, ".yaml") || strings.HasSuffix(base, ".yml") {
					names = append(names, strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml"))
				}
			}
		}
	}
	return names
}

func isPath(name string) bool {
	return strings.ContainsRune(name, os.PathSeparator) ||
		strings.ContainsRune(name, '/') ||
		strings.HasSuffix(name, ".yaml") ||
		strings.HasSuffix(name, ".yml")
}

// builtins are the profiles shipped with the binary.
var builtins = map[string]Profile{
	"default": {
		Name: "default",
		Exclude: []string{
			"**/.git/**",
			"**/node_modules/**",
			"**/vendor/**",
			"**/dist/**",
			"**/*.lock",
			"**/*.min.*",
		},
		MaxFileSize: 512 * 1024,
		Binary:      BinaryDrop,
		Charset:     CharsetConvert,
		SortBy:      "path",
		Format:      "markdown",
		Output:      "-",
	},
	"slim": {
		Name:    "slim",
		Extends: "default",
		Exclude: []string{
			"**/*_test.go",
			"**/*.test.*",
			"**/testdata/**",
			"**/docs/**",
			"**/*.md",
		},
		MaxFileSize: 128 * 1024,
		TokenBudget: 100000,
	},
	"full": {
		Name:        "full",
		Extends:     "default",
		MaxFileSize: 2 * 1024 * 1024,
		Binary:      BinaryPlaceholder,
		Git:         GitOptions{Annotate: true},
	},
}
