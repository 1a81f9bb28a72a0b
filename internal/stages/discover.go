package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/pipeline"
)

// Discover walks the root in parallel and collects candidate files. The
// walk order is nondeterministic; a final path sort restores it.
type Discover struct{}

func (d *Discover) StageName() string { return "discover" }

func (d *Discover) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var files []*bundle.File

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, b.Root, func(p string, entry os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}

		rel, relErr := filepath.Rel(b.Root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if entry.Name() == ".git" || ignored(b.Ignore, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || ignored(b.Ignore, rel) {
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}

		mu.Lock()
		files = append(files, &bundle.File{
			Path:    p,
			RelPath: rel,
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.Root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	b.Files = files

	pipeline.Progress(ctx, 100, fmt.Sprintf("discovered %d files", len(files)))
	return b, nil
}

func ignored(rules []string, rel string) bool {
	for _, pat := range rules {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
