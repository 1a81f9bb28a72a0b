package stages

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/pipeline"
)

// Filter applies the profile's include/exclude globs and size cap. Files
// the profile never selected are removed outright; files selected but over
// the size cap stay in the ledger with a skip reason.
type Filter struct {
	// Lenient downgrades a pattern failure: Recover keeps whatever matched
	// before the failure instead of aborting the run.
	Lenient bool
}

func (f *Filter) StageName() string { return "filter" }

func (f *Filter) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}
	prof := b.Profile

	kept := make([]*bundle.File, 0, len(b.Files))
	for _, file := range b.Files {
		if err := matchErr(prof.Include, file.RelPath); err != nil {
			b.Files = kept
			return nil, err
		}
		if err := matchErr(prof.Exclude, file.RelPath); err != nil {
			b.Files = kept
			return nil, err
		}

		if !prof.Matches(file.RelPath) {
			continue
		}
		if prof.MaxFileSize > 0 && file.Size > prof.MaxFileSize {
			file.SkipReason = fmt.Sprintf("over size cap (%d > %d bytes)", file.Size, prof.MaxFileSize)
		}
		kept = append(kept, file)
	}
	b.Files = kept

	pipeline.Logf(ctx, "info", "filter kept %d of %d files", len(b.Included()), len(kept))
	return b, nil
}

// Recover keeps the files matched before the failure, but only for
// lenient runs; otherwise the original failure stands.
func (f *Filter) Recover(ctx context.Context, err error, input interface{}) (interface{}, error) {
	if !f.Lenient {
		return nil, err
	}
	b, berr := asBundle(input)
	if berr != nil {
		return nil, err
	}
	pipeline.Logf(ctx, "warn", "filter degraded (%v): keeping %d matched files", err, len(b.Files))
	return b, nil
}

// matchErr surfaces pattern errors that Matches swallows.
func matchErr(patterns []string, rel string) error {
	for _, pat := range patterns {
		if _, err := doublestar.Match(pat, rel); err != nil {
			return fmt.Errorf("pattern %q: %w", pat, err)
		}
	}
	return nil
}
