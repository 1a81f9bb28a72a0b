package stages

import (
	"context"

	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/shared/utils"
)

// Dedup hashes every loaded body and collapses duplicate contents: the
// first occurrence keeps its body, later ones become references to it.
type Dedup struct {
	hasher *utils.Hasher
}

func (d *Dedup) StageName() string { return "dedup" }

func (d *Dedup) Init(ec *pipeline.ExecContext) error {
	d.hasher = utils.DefaultHasher()
	return nil
}

func (d *Dedup) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	dupes := 0
	for _, f := range b.Files {
		if f.Skipped() || len(f.Content) == 0 {
			continue
		}

		f.Hash = d.hasher.Hash(f.Content)
		if first, ok := seen[f.Hash]; ok {
			f.DuplicateOf = first
			f.SkipReason = "duplicate of " + first
			dupes++
			continue
		}
		seen[f.Hash] = f.RelPath
	}

	if dupes > 0 {
		pipeline.Logf(ctx, "info", "collapsed %d duplicate files", dupes)
	}
	return b, nil
}
