package pipeline

import (
	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/events"
	"github.com/satchelworks/satchel/internal/logging"
)

// Options are the resolved run options the orchestrator recognizes. They
// are surfaced to every stage through the ExecContext; Parallel and
// MaxConcurrency are hints for a stage's internal fan-out only, the
// orchestrator itself never runs stages concurrently.
type Options struct {
	// ContinueOnError tolerates unrecovered stage failures by carrying the
	// pre-failure value forward. Default false.
	ContinueOnError bool
	// EmitProgress controls stage:progress and stage:log emission.
	// Default true.
	EmitProgress bool
	// Parallel hints that stages may fan out internal sub-work.
	Parallel bool
	// MaxConcurrency bounds a stage's internal fan-out when Parallel is set.
	MaxConcurrency int
}

func defaultOptions() Options {
	return Options{
		EmitProgress:   true,
		MaxConcurrency: 1,
	}
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// ContinueOnError sets best-effort completion for the whole run.
func ContinueOnError(on bool) Option {
	return func(p *Pipeline) { p.opts.ContinueOnError = on }
}

// EmitProgress toggles stage:progress and stage:log events.
func EmitProgress(on bool) Option {
	return func(p *Pipeline) { p.opts.EmitProgress = on }
}

// Parallel hints stages to fan out bounded internal sub-work.
func Parallel(on bool) Option {
	return func(p *Pipeline) { p.opts.Parallel = on }
}

// MaxConcurrency bounds internal stage fan-out.
func MaxConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.opts.MaxConcurrency = n
		}
	}
}

// WithLogger wires the run logger. Stages see a child logger scoped to
// their own name.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBus wires an externally owned event bus so callers can subscribe
// before the run starts.
func WithBus(bus *events.Bus) Option {
	return func(p *Pipeline) {
		if bus != nil {
			p.bus = bus
		}
	}
}

// WithConfig exposes application configuration to stages through the
// ExecContext.
func WithConfig(cfg *config.Config) Option {
	return func(p *Pipeline) { p.config = cfg }
}
