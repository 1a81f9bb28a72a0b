package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/events"
	"github.com/satchelworks/satchel/internal/logging"
)

// Event payloads, one struct per catalogue entry.

// StartPayload accompanies pipeline:start.
type StartPayload struct {
	Input      interface{}
	StageCount int
	Options    Options
}

// StagePayload accompanies stage:start.
type StagePayload struct {
	Stage string
	Index int
	Input interface{}
}

// ProgressPayload accompanies stage:progress.
type ProgressPayload struct {
	Stage   string
	Percent float64
	Message string
}

// LogPayload accompanies stage:log.
type LogPayload struct {
	Stage   string
	Message string
	Level   string
}

// CompletePayload accompanies stage:complete.
type CompletePayload struct {
	Stage      string
	Index      int
	Output     interface{}
	Duration   time.Duration
	InputSize  int
	OutputSize int
	MemDelta   MemoryDelta
	Timestamp  time.Time
}

// ErrorPayload accompanies stage:error.
type ErrorPayload struct {
	Stage string
	Index int
	Err   error
}

// RecoverPayload accompanies stage:recover.
type RecoverPayload struct {
	Stage string
	Index int
	Err   error
	Value interface{}
}

// RunCompletePayload accompanies pipeline:complete.
type RunCompletePayload struct {
	Value interface{}
	Stats Statistics
}

// RunErrorPayload accompanies pipeline:error.
type RunErrorPayload struct {
	Err   error
	Stats Statistics
}

// registered pairs a lifted stage with its derived name.
type registered struct {
	stage Stage
	name  string
}

// Pipeline drives one context value through an ordered list of stages,
// applying the error-recovery policy and emitting the event sequence.
// Stages execute strictly in registration order; the orchestrator performs
// no parallel dispatch.
type Pipeline struct {
	stages []registered
	opts   Options
	logger *logging.Logger
	bus    *events.Bus
	config *config.Config

	// regErr holds the first malformed registration; surfaced at Process,
	// never entering the recovery machine.
	regErr error

	mu    sync.Mutex
	stats Statistics
}

// New creates a pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		opts:   defaultOptions(),
		logger: logging.NewNop(),
		bus:    events.NewBus(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stats = newStatistics()
	return p
}

// Bus returns the event bus so callers can subscribe before Process.
func (p *Pipeline) Bus() *events.Bus { return p.bus }

// Stats returns a point-in-time copy of the run Statistics. Safe to call
// during and after a run, including after a failed one.
func (p *Pipeline) Stats() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshot()
}

// StageCount reports how many stages are registered.
func (p *Pipeline) StageCount() int { return len(p.stages) }

// Through appends one or more stages in order. Each argument must satisfy
// the Stage contract or be a plain function of the context value. Returns
// the pipeline for chaining; a malformed registration is reported by the
// next Process call.
func (p *Pipeline) Through(stages ...interface{}) *Pipeline {
	for _, v := range stages {
		stage, err := lift(v)
		if err != nil {
			if p.regErr == nil {
				p.regErr = err
			}
			continue
		}
		name := stageName(stage)
		p.stages = append(p.stages, registered{stage: stage, name: name})

		if init, ok := stage.(Initializer); ok {
			if err := init.Init(p.newExecContext()); err != nil && p.regErr == nil {
				p.regErr = fmt.Errorf("pipeline: init stage %s: %w", name, err)
			}
		}
	}
	return p
}

// newExecContext builds the bundle handed to stages.
func (p *Pipeline) newExecContext() *ExecContext {
	return &ExecContext{
		pipeline: p,
		logger:   p.logger,
		opts:     p.opts,
		config:   p.config,
	}
}

// publish emits an event on the bus.
func (p *Pipeline) publish(name events.Name, payload interface{}) {
	p.bus.Publish(events.New(name, payload))
}

// Process runs input through every registered stage in order and returns
// the final context value. It populates Statistics and publishes the full
// event sequence as side effects; it fails only when a stage's failure is
// not recovered and ContinueOnError is off, when validation fails, when
// the ctx is cancelled, or when registration was malformed.
func (p *Pipeline) Process(ctx context.Context, input interface{}) (interface{}, error) {
	if p.regErr != nil {
		return nil, p.regErr
	}

	p.mu.Lock()
	p.stats = newStatistics()
	p.stats.StartTime = time.Now()
	p.mu.Unlock()

	ec := p.newExecContext()
	ctx = withExecContext(ctx, ec)

	p.publish(events.PipelineStart, StartPayload{
		Input:      input,
		StageCount: len(p.stages),
		Options:    p.opts,
	})

	var invocations []time.Duration
	current := input

	for i, reg := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, p.abort(err, invocations)
		}

		ec.setStage(reg.name, i)
		log := p.logger.Scoped(reg.name)

		p.publish(events.StageStart, StagePayload{Stage: reg.name, Index: i, Input: current})
		log.Debug("stage starting", zap.Int("index", i))

		// Before: pure setup; an error enters the recovery machine like a
		// Process failure.
		if before, ok := reg.stage.(BeforeHook); ok {
			if err := before.Before(ctx, current); err != nil {
				next, fatal := p.failStage(ctx, reg, i, err, current, log)
				if fatal != nil {
					return nil, p.abort(fatal, invocations)
				}
				current = next
				continue
			}
		}

		// Validate: failure aborts the run immediately, bypassing recovery.
		if v, ok := reg.stage.(ValidatingStage); ok {
			if err := v.Validate(current); err != nil {
				verr := &StageError{Stage: reg.name, Index: i, Err: err}
				p.recordError(verr)
				p.publish(events.StageError, ErrorPayload{Stage: reg.name, Index: i, Err: err})
				log.Error("validation failed", zap.Error(err))
				return nil, p.abort(verr, invocations)
			}
		}

		inputSize := sizeOf(current)
		memBefore := snapshotMemory()
		start := time.Now()

		output, err := reg.stage.Process(ctx, current)

		duration := time.Since(start)
		memAfter := snapshotMemory()
		invocations = append(invocations, duration)

		if err != nil {
			next, fatal := p.failStage(ctx, reg, i, err, current, log)
			if fatal != nil {
				return nil, p.abort(fatal, invocations)
			}
			current = next
			continue
		}

		// After: observation only; an error here is logged, never
		// propagated.
		if after, ok := reg.stage.(AfterHook); ok {
			if aerr := after.After(ctx, output); aerr != nil {
				log.Warn("after hook failed", zap.Error(aerr))
			}
		}

		outputSize := sizeOf(output)
		metrics := StageMetrics{
			Duration:   duration,
			InputSize:  inputSize,
			OutputSize: outputSize,
			MemBefore:  memBefore,
			MemAfter:   memAfter,
			MemDelta:   memoryDelta(memBefore, memAfter),
		}

		p.mu.Lock()
		p.stats.StagesCompleted++
		p.stats.Durations[reg.name] = duration
		p.stats.Metrics[reg.name] = metrics
		p.mu.Unlock()

		p.publish(events.StageComplete, CompletePayload{
			Stage:      reg.name,
			Index:      i,
			Output:     output,
			Duration:   duration,
			InputSize:  inputSize,
			OutputSize: outputSize,
			MemDelta:   metrics.MemDelta,
			Timestamp:  time.Now(),
		})
		log.Debug("stage complete",
			zap.Duration("duration", duration),
			zap.Int("input_size", inputSize),
			zap.Int("output_size", outputSize),
		)

		current = output
	}

	p.mu.Lock()
	finalize(&p.stats, invocations)
	final := p.stats.snapshot()
	p.mu.Unlock()

	p.publish(events.PipelineComplete, RunCompletePayload{Value: current, Stats: final})
	return current, nil
}

// failStage runs the failure path for one stage: notify the observer,
// publish stage:error, then apply the two-tier recovery policy. It returns
// the value the run continues with, or a fatal error when the run must
// abort.
func (p *Pipeline) failStage(ctx context.Context, reg registered, index int, cause error, input interface{}, log *logging.Logger) (interface{}, error) {
	if obs, ok := reg.stage.(ErrorObserver); ok {
		obs.OnError(cause, input)
	}

	p.publish(events.StageError, ErrorPayload{Stage: reg.name, Index: index, Err: cause})
	log.Error("stage failed", zap.Error(cause))

	// Tier one: stage-declared recovery.
	if rec, ok := reg.stage.(Recoverer); ok {
		value, rerr := rec.Recover(ctx, cause, input)
		if rerr == nil {
			serr := &StageError{Stage: reg.name, Index: index, Err: cause, Recovered: true}
			p.recordError(serr)
			p.publish(events.StageRecover, RecoverPayload{
				Stage: reg.name,
				Index: index,
				Err:   cause,
				Value: value,
			})
			log.Info("stage recovered")
			return value, nil
		}
		log.Error("recovery failed", zap.Error(rerr))
	}

	serr := &StageError{Stage: reg.name, Index: index, Err: cause}
	p.recordError(serr)

	// Tier two: run-level best effort. The pre-failure input carries
	// forward unchanged; no stage:recover is published.
	if p.opts.ContinueOnError {
		log.Warn("continuing past failure")
		return input, nil
	}

	return nil, serr
}

// recordError appends a stage error and bumps the failure count.
func (p *Pipeline) recordError(serr *StageError) {
	p.mu.Lock()
	p.stats.StagesFailed++
	p.stats.StageErrors = append(p.stats.StageErrors, serr)
	p.mu.Unlock()
}

// abort records final Statistics and publishes pipeline:error before the
// error propagates out of Process.
func (p *Pipeline) abort(err error, invocations []time.Duration) error {
	p.mu.Lock()
	finalize(&p.stats, invocations)
	final := p.stats.snapshot()
	p.mu.Unlock()

	p.publish(events.PipelineError, RunErrorPayload{Err: err, Stats: final})
	return err
}
