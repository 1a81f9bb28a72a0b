// Package server exposes pack runs over HTTP for serve mode.
//
// Routes:
//   - POST /v1/pack — run a pack for a root + profile, artifact in the
//     JSON response
//   - GET /v1/profiles — available profile names
//   - GET /stream — WebSocket feed of every pipeline event
//   - GET /health, GET /metrics (Prometheus)
//
// The server owns one shared event bus: pack runs publish on it, the
// stream endpoint and the stage-failure counters subscribe.
//
// Example Usage:
//
//	cfg, _ := config.Load("")
//	srv := server.NewServer(cfg, nil)
//	if err := srv.Run(":8400"); err != nil {
//	    log.Fatal(err)
//	}
package server
