// Package ws streams pipeline events to WebSocket clients.
//
// A Streamer subscribes to the server's event bus and fans every event
// out to connected clients as JSON frames. Each client gets a bounded
// send queue; clients that fall behind are dropped rather than allowed
// to stall the broadcast path.
//
// Frames (Server → Client):
//   - pipeline:start / pipeline:complete / pipeline:error
//   - stage:start / stage:progress / stage:log
//   - stage:complete / stage:error / stage:recover
//
// Example Usage:
//
//	streamer := ws.NewStreamer(bus, logger, metrics)
//	router.GET("/stream", streamer.Handle)
package ws
