package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/events"
	"github.com/satchelworks/satchel/internal/logging"
)

// ExecContext is the bundle injected into stages: a logger scoped to the
// running stage, the resolved run options, a read-only view of the live
// Statistics, the configuration accessor, and a back-reference to the
// orchestrator for custom event emission. Created at run start, discarded
// at run end; never persisted. Distinct from the context value threaded
// through Process.
type ExecContext struct {
	pipeline *Pipeline
	logger   *logging.Logger
	opts     Options
	config   *config.Config

	mu    sync.Mutex
	stage string
	index int
}

// Logger returns the logger scoped to the currently running stage.
func (ec *ExecContext) Logger() *logging.Logger {
	ec.mu.Lock()
	stage := ec.stage
	ec.mu.Unlock()
	if stage == "" {
		return ec.logger
	}
	return ec.logger.Scoped(stage)
}

// Options returns the resolved run options.
func (ec *ExecContext) Options() Options { return ec.opts }

// Config returns application configuration, or nil when the pipeline was
// built without one.
func (ec *ExecContext) Config() *config.Config { return ec.config }

// Stats returns a point-in-time copy of the run Statistics. Stages may
// only read; the orchestrator is the sole writer.
func (ec *ExecContext) Stats() Statistics {
	return ec.pipeline.Stats()
}

// Progress publishes a stage:progress event for the running stage. The
// percentage is clamped to [0, 100]. Suppressed when EmitProgress is off.
func (ec *ExecContext) Progress(percent float64, message string) {
	if !ec.opts.EmitProgress {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	ec.mu.Lock()
	stage := ec.stage
	ec.mu.Unlock()
	ec.pipeline.publish(events.StageProgress, ProgressPayload{
		Stage:   stage,
		Percent: percent,
		Message: message,
	})
}

// Logf publishes a stage:log event for the running stage. Suppressed when
// EmitProgress is off.
func (ec *ExecContext) Logf(level, format string, args ...interface{}) {
	if !ec.opts.EmitProgress {
		return
	}
	ec.mu.Lock()
	stage := ec.stage
	ec.mu.Unlock()
	ec.pipeline.publish(events.StageLog, LogPayload{
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Level:   level,
	})
}

// setStage points the bundle at the stage about to run.
func (ec *ExecContext) setStage(name string, index int) {
	ec.mu.Lock()
	ec.stage = name
	ec.index = index
	ec.mu.Unlock()
}

// ecKey is the context key for the run's ExecContext.
type ecKey struct{}

// withExecContext threads the bundle through context.Context so bare-func
// stages can reach it.
func withExecContext(ctx context.Context, ec *ExecContext) context.Context {
	return context.WithValue(ctx, ecKey{}, ec)
}

// FromContext extracts the ExecContext threaded through a stage's ctx.
// Returns nil when the function is not running under a pipeline.
func FromContext(ctx context.Context) *ExecContext {
	ec, _ := ctx.Value(ecKey{}).(*ExecContext)
	return ec
}

// Progress reports progress from a bare-func stage. No-op outside a
// pipeline run.
func Progress(ctx context.Context, percent float64, message string) {
	if ec := FromContext(ctx); ec != nil {
		ec.Progress(percent, message)
	}
}

// Logf emits a stage:log event from a bare-func stage. No-op outside a
// pipeline run.
func Logf(ctx context.Context, level, format string, args ...interface{}) {
	if ec := FromContext(ctx); ec != nil {
		ec.Logf(level, format, args...)
	}
}
