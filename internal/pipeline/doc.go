// Package pipeline provides the execution engine that drives a pack run.
//
// A Pipeline holds an ordered list of stages and threads one mutable
// context value through each stage's Process in registration order. Around
// every invocation it applies the lifecycle hooks (Init, Before, Validate,
// After, OnError, Recover), captures timing and memory metrics, and
// publishes the observability event sequence on a synchronous bus.
//
// Error recovery is two-tier:
//   - A stage implementing Recover declares precise, typed degradation
//     (e.g. "skip malformed files"); its substitute value continues the
//     run and a stage:recover event is published.
//   - The run-level ContinueOnError option is a blunt fallback that
//     carries the pre-failure value forward past any unrecovered failure.
//
// Validation failures are always fatal and bypass both tiers.
//
// Scheduling is single-threaded: exactly one stage is in flight at a time
// and stages never run concurrently with each other. A stage may fan out
// bounded internal sub-work (see Options.MaxConcurrency) as long as it
// reassembles results before returning. Statistics writes and event
// publication are nonetheless mutex-guarded so observers on other
// goroutines (the WebSocket stream) read consistent state.
//
// Cancellation is cooperative: the ctx passed to Process is threaded
// through every hook, and the orchestrator checks it between stages,
// aborting through the normal error path.
package pipeline
