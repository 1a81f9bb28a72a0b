package stages

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/satchelworks/satchel/internal/pipeline"
)

// Load reads file bodies concurrently, bounded by the engine's
// MaxConcurrency hint. Output order is the input order: each goroutine
// writes only its own file. Files the charset stage tagged are decoded to
// UTF-8 here.
type Load struct{}

func (l *Load) StageName() string { return "load" }

func (l *Load) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}

	limit := 1
	if ec := pipeline.FromContext(ctx); ec != nil {
		if hint := ec.Options().MaxConcurrency; hint > limit {
			limit = hint
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	total := len(b.Files)
	for i, f := range b.Files {
		if f.Skipped() || f.Content != nil {
			continue
		}
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			data, rErr := os.ReadFile(f.Path)
			if rErr != nil {
				f.SkipReason = "unreadable: " + rErr.Error()
				return nil
			}

			if f.Charset != "" {
				decoded, dErr := decode(data, f.Charset)
				if dErr != nil {
					f.SkipReason = fmt.Sprintf("decode %s: %v", f.Charset, dErr)
					return nil
				}
				data = decoded
			}

			f.Content = data
			f.Size = int64(len(data))

			if total > 0 && (i+1)%64 == 0 {
				pipeline.Progress(gctx, float64(i+1)/float64(total)*100, "loading files")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pipeline.Progress(ctx, 100, fmt.Sprintf("loaded %d files (%d bytes)", len(b.Included()), b.TotalBytes()))
	return b, nil
}

func decode(data []byte, charset string) ([]byte, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("no decoder for %s", charset)
	}
	return enc.NewDecoder().Bytes(data)
}
