// Package events provides the synchronous event channel for pipeline
// observability.
//
// The bus is a broadcast list, not a queue: Publish invokes every matching
// handler before returning, so subscribers observe events in exactly the
// order the engine emits them. No event is dropped or buffered across runs.
//
// Subscribers (the CLI progress line, the zap log sink, the WebSocket
// stream, test harnesses) cannot affect pipeline control flow.
package events
