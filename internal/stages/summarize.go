package stages

import (
	"context"

	"github.com/satchelworks/satchel/internal/ai"
	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/pipeline"
)

// Summarize attaches AI summaries to files the profile selects for them.
// The stage degrades rather than fails: missing client, disabled endpoint,
// or wholesale errors all produce a pack without summaries.
type Summarize struct {
	Client *ai.Client
}

func (s *Summarize) StageName() string { return "summarize" }

func (s *Summarize) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}
	if !b.Profile.Summarize || s.Client == nil || !s.Client.Enabled() {
		return b, nil
	}

	var targets []*bundle.File
	var reqs []ai.Request
	for _, f := range b.Included() {
		if f.Content == nil || !b.Profile.WantsSummary(f.RelPath) {
			continue
		}
		targets = append(targets, f)
		reqs = append(reqs, ai.Request{RelPath: f.RelPath, Content: f.Content})
	}
	if len(reqs) == 0 {
		return b, nil
	}

	pipeline.Progress(ctx, 0, "summarizing files")
	summaries := s.Client.SummarizeAll(ctx, reqs)
	got := 0
	for i, f := range targets {
		if summaries[i] != "" {
			f.Summary = summaries[i]
			got++
		}
	}

	pipeline.Logf(ctx, "info", "summarized %d of %d files", got, len(targets))
	return b, nil
}

// Recover drops summaries rather than the run.
func (s *Summarize) Recover(ctx context.Context, err error, input interface{}) (interface{}, error) {
	b, berr := asBundle(input)
	if berr != nil {
		return nil, err
	}
	pipeline.Logf(ctx, "warn", "summarizer failed (%v): continuing without summaries", err)
	return b, nil
}
