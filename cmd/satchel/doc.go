// Command satchel packs a project tree into a single artifact for sharing
// with language models and code review tools.
//
// One-shot usage:
//
//	satchel -profile slim -output pack.md ./myproject
//	satchel -clip .
//	satchel -format json -quiet . > pack.json
//
// Serve mode exposes the same pack over HTTP with a live event stream:
//
//	satchel -serve -addr :8400
//
// Progress and the run summary go to stderr; stdout carries only the
// artifact, so the output can be piped.
package main
