package pipeline

import "context"

// Builder is the convenience form of the orchestrator: seed a value with
// Send, chain Through, then ThenReturn to run.
//
//	result, err := pipeline.Create().
//		Send(10).
//		Through(addOne, double).
//		ThenReturn(ctx)
type Builder struct {
	pipeline *Pipeline
	value    interface{}
}

// Create starts a builder around a fresh pipeline.
func Create(opts ...Option) *Builder {
	return &Builder{pipeline: New(opts...)}
}

// Send seeds the initial context value.
func (b *Builder) Send(value interface{}) *Builder {
	b.value = value
	return b
}

// Through appends stages, accepting the same forms as Pipeline.Through.
func (b *Builder) Through(stages ...interface{}) *Builder {
	b.pipeline.Through(stages...)
	return b
}

// Options applies additional options before the run.
func (b *Builder) Options(opts ...Option) *Builder {
	for _, opt := range opts {
		opt(b.pipeline)
	}
	return b
}

// Pipeline exposes the underlying orchestrator, e.g. to subscribe to its
// bus before ThenReturn.
func (b *Builder) Pipeline() *Pipeline { return b.pipeline }

// ThenReturn runs the seeded value through the registered stages; the
// terminal equivalent of Process.
func (b *Builder) ThenReturn(ctx context.Context) (interface{}, error) {
	return b.pipeline.Process(ctx, b.value)
}
