package stages

import (
	"context"
	"sort"

	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/pipeline"
)

// bytesPerToken is the rough byte-to-token ratio used for estimation.
const bytesPerToken = 4

// Budget estimates per-file token counts and enforces the profile's token
// budget by dropping the largest files first, each with an explicit skip
// record.
type Budget struct{}

func (s *Budget) StageName() string { return "budget" }

func (s *Budget) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}

	for _, f := range b.Files {
		if f.Skipped() {
			continue
		}
		f.Tokens = estimateTokens(f.Content)
	}

	budget := b.Profile.TokenBudget
	if budget <= 0 {
		return b, nil
	}

	total := b.TotalTokens()
	if total <= budget {
		return b, nil
	}

	// Largest first, so one oversized file does not evict many small ones.
	included := b.Included()
	bySize := make([]*bundle.File, len(included))
	copy(bySize, included)
	sort.SliceStable(bySize, func(i, j int) bool { return bySize[i].Tokens > bySize[j].Tokens })

	dropped := 0
	for _, f := range bySize {
		if total <= budget {
			break
		}
		total -= f.Tokens
		f.SkipReason = "over token budget"
		dropped++
	}

	pipeline.Logf(ctx, "warn", "token budget %d exceeded: dropped %d files, %d tokens remain", budget, dropped, total)
	return b, nil
}

func estimateTokens(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	return (len(content) + bytesPerToken - 1) / bytesPerToken
}
