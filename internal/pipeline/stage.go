package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Stage is a single named unit of work. Process receives the previous
// stage's output (the context value) and returns the input for the next
// stage. Everything else in the lifecycle is optional and discovered by
// interface assertion at run time.
type Stage interface {
	Process(ctx context.Context, value interface{}) (interface{}, error)
}

// Initializer is implemented by stages that prepare resources (caches,
// derived config) when they are registered. Init must not touch the run's
// context value.
type Initializer interface {
	Init(ec *ExecContext) error
}

// BeforeHook runs immediately before Process on each invocation. Pure
// setup: it may not replace the input. A Before error is treated like a
// Process failure and enters the recovery machine.
type BeforeHook interface {
	Before(ctx context.Context, input interface{}) error
}

// ValidatingStage checks its input before Process. A validation error
// aborts the entire run immediately; it is never retried or recovered and
// bypasses Recover.
type ValidatingStage interface {
	Validate(input interface{}) error
}

// AfterHook runs after a successful Process. Observation only: it must not
// mutate the output, and its error is logged but never alters control flow.
type AfterHook interface {
	After(ctx context.Context, output interface{}) error
}

// ErrorObserver is notified immediately after Process fails, before any
// recovery attempt. Observation only.
type ErrorObserver interface {
	OnError(err error, input interface{})
}

// Recoverer lets a stage declare a substitute result after its own failure.
// Returning a value without error continues the run with that value; an
// error from Recover makes the original failure fatal.
type Recoverer interface {
	Recover(ctx context.Context, err error, input interface{}) (interface{}, error)
}

// NamedStage overrides the derived stage name.
type NamedStage interface {
	StageName() string
}

// Sizer lets a context value report its cardinality (e.g. file count) to
// the metrics collector. Values without it fall back to reflection.
type Sizer interface {
	Size() int
}

// Func lifts a bare function to a Stage whose only implemented hook is
// Process.
type Func func(ctx context.Context, value interface{}) (interface{}, error)

// Process implements Stage.
func (f Func) Process(ctx context.Context, value interface{}) (interface{}, error) {
	return f(ctx, value)
}

// funcStage wraps a lifted function with the name captured at registration.
type funcStage struct {
	fn   Func
	name string
}

func (s *funcStage) Process(ctx context.Context, value interface{}) (interface{}, error) {
	return s.fn(ctx, value)
}

func (s *funcStage) StageName() string { return s.name }

// lift converts a registered value into a Stage. Accepted forms: any Stage
// implementation, a Func, func(context.Context, any) (any, error), or
// func(any) (any, error). Anything else is a registration error.
func lift(v interface{}) (Stage, error) {
	switch s := v.(type) {
	case nil:
		return nil, fmt.Errorf("pipeline: nil stage")
	case Func:
		return &funcStage{fn: s, name: funcName(s)}, nil
	case func(context.Context, interface{}) (interface{}, error):
		return &funcStage{fn: s, name: funcName(s)}, nil
	case func(interface{}) (interface{}, error):
		fn := func(_ context.Context, value interface{}) (interface{}, error) {
			return s(value)
		}
		return &funcStage{fn: fn, name: funcName(s)}, nil
	case Stage:
		return s, nil
	default:
		return nil, fmt.Errorf("pipeline: %T does not satisfy the stage contract", v)
	}
}

// stageName derives a stable display name for a stage: an explicit
// StageName when provided, otherwise the type name with pointer and
// package path stripped.
func stageName(s Stage) string {
	if named, ok := s.(NamedStage); ok {
		if name := named.StageName(); name != "" {
			return name
		}
	}

	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// funcName resolves a registered function's runtime name, trimmed to its
// final path element with closure/method suffixes removed.
func funcName(fn interface{}) string {
	pc := reflect.ValueOf(fn).Pointer()
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return "func"
	}
	name := rf.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "func"
	}
	return name
}
