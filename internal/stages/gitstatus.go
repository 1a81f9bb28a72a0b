package stages

import (
	"context"

	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/vcs"
)

// GitStatus annotates files with working-tree state and optionally keeps
// only changed ones. Outside a repository the stage recovers to "no git
// data" when the profile merely annotates; a run that depends on git for
// selection still fails.
type GitStatus struct{}

func (g *GitStatus) StageName() string { return "gitstatus" }

func (g *GitStatus) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}
	opts := b.Profile.Git
	if !opts.Annotate && !opts.OnlyChanged {
		return b, nil
	}

	repo, err := vcs.Open(ctx, b.Root, nil)
	if err != nil {
		return nil, err
	}

	statuses, err := repo.Status(ctx)
	if err != nil {
		return nil, err
	}
	tracked, err := repo.Tracked(ctx)
	if err != nil {
		return nil, err
	}

	kept := make([]*bundle.File, 0, len(b.Files))
	for _, f := range b.Files {
		key, relErr := repo.Rel(f.Path)
		if relErr != nil {
			key = f.RelPath
		}

		status, changed := statuses[key]
		switch {
		case changed:
			f.Git = status
		case tracked[key]:
			f.Git = bundle.GitClean
		default:
			f.Git = bundle.GitUntracked
		}

		if opts.OnlyChanged && f.Git != bundle.GitModified && f.Git != bundle.GitUntracked {
			continue
		}
		kept = append(kept, f)
	}
	b.Files = kept

	pipeline.Logf(ctx, "info", "git annotated %d files", len(kept))
	return b, nil
}

// Recover continues without git data for annotate-only profiles.
func (g *GitStatus) Recover(ctx context.Context, err error, input interface{}) (interface{}, error) {
	b, berr := asBundle(input)
	if berr != nil {
		return nil, err
	}
	if b.Profile.Git.OnlyChanged {
		return nil, err
	}
	pipeline.Logf(ctx, "warn", "git unavailable (%v): packing without annotations", err)
	return b, nil
}
