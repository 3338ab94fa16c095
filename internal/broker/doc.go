// Package broker fans push frames out to connected streaming clients.
//
// # Overview
//
// Every client that opens a push stream gets exactly one buffered channel,
// keyed by its client id. Jobs relay frames to that channel as runtime events
// arrive; the stream handler drains it into the HTTP response.
//
// # Delivery Semantics
//
// Delivery is best effort, always:
//
//   - Send never blocks. A frame that does not fit in the client's buffer is
//     dropped and the client is deregistered.
//   - A frame sent while no channel is registered is dropped.
//   - Nothing is buffered on behalf of disconnected clients; durable history
//     lives in the store, and reconnecting clients replay from there.
//
// # Supersede
//
// A client reconnecting under the same id replaces its old registration. The
// old channel is closed, which ends the old stream handler's drain loop.
// Deregistration is guarded by channel identity so a superseded connection
// tearing down late cannot remove its replacement.
//
// # Frame Order
//
// The first frame on every new channel is the connected ack. After that a
// typical turn delivers thread_info (canonical thread id), a stretch of
// agent_event frames, and finally job_complete or error.
package broker
