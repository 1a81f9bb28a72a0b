// Package config provides 12-factor configuration management for satchel.
//
// Configuration is loaded from environment variables with sensible defaults,
// optionally overlaid by a satchel.toml file in the project root. The
// project-local file beats environment; CLI flags beat both.
//
// Configuration Sections:
//   - Server: serve-mode HTTP settings (port, host)
//   - AI: summarizer endpoint, model, rate limits
//   - Logging: log level and output format
//   - Pack: per-run defaults (profile, format, concurrency, budget)
//   - Profiles: where user-defined profiles live
//
// Example Usage:
//
//	cfg := config.LoadOrDefault(root)
//	fmt.Printf("packing with profile %s\n", cfg.Pack.Profile)
//
// Environment Variables (all prefixed SATCHEL_):
//   - SATCHEL_PORT, SATCHEL_HOST
//   - SATCHEL_AI_URL, SATCHEL_AI_KEY, SATCHEL_AI_MODEL
//   - SATCHEL_LOG_LEVEL, SATCHEL_LOG_DEV
//   - SATCHEL_PROFILE, SATCHEL_FORMAT, SATCHEL_MAX_CONCURRENCY
package config
