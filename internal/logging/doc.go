// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// All output goes to stderr: in CLI mode stdout is reserved for the
// rendered artifact, so log lines must never interleave with it.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Pack starting", zap.String("root", root))
//	logger.Scoped("discover").Debug("walk complete", zap.Int("files", n))
package logging
