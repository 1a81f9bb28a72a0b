package stages

import (
	"context"
	"fmt"

	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/render"
	"github.com/satchelworks/satchel/internal/shared/id"
)

// Render assembles the artifact in the profile's format and assigns its
// identifier.
type Render struct{}

func (s *Render) StageName() string { return "render" }

func (s *Render) Validate(input interface{}) error {
	b, err := asBundle(input)
	if err != nil {
		return err
	}
	_, err = render.For(b.Profile.Format)
	return err
}

func (s *Render) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}

	r, err := render.For(b.Profile.Format)
	if err != nil {
		return nil, err
	}

	artifact, err := r.Render(b)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", r.Name(), err)
	}

	b.Artifact = artifact
	b.ArtifactID = id.NewArtifactID()

	pipeline.Logf(ctx, "info", "rendered %s artifact (%d bytes)", r.Name(), len(artifact))
	return b, nil
}
