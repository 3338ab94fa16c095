// Package job coordinates message processing between clients and agent
// runtimes.
//
// # Overview
//
// A job is one user message through one agent turn. Submission validates the
// request and returns immediately with a queued job id; the actual turn runs
// in a goroutine and streams its progress over the client's push channel.
// Job records are in-memory bookkeeping only. Durable history is the thread
// event log in the store.
//
// # Lifecycle
//
//	queued -> processing -> completed | error
//
// The run loop per job:
//
//  1. Resolve the thread. A submitted thread id is resumed; a failed resume
//     falls back to a fresh thread. No thread id starts fresh.
//  2. If the thread ref is already canonical, persist the turn start right
//     away: thread metadata upsert, thread_info frame, durable user-message
//     event.
//  3. Start the runtime turn and consume its event stream.
//  4. Per event: reconcile the pending ref if the event carries the canonical
//     thread id (at most once per job), relay the event to the client, then
//     append it to the durable log.
//  5. A runtime error event or stream failure ends the job in error.
//  6. Stream exhaustion completes the job and emits job_complete with the
//     turn's duration.
//
// # Relay Before Persistence
//
// Within each event, the client push always happens before the store append.
// Events that arrive before the canonical thread id exists are relayed but
// never persisted; that early window is bounded by the runtime's first event.
//
// # Persistence Is Best Effort
//
// Store failures are logged and swallowed. A turn never aborts because the
// database hiccuped; the client still sees the full relay. Each write uses a
// short detached timeout so a hung database cannot wedge the run loop.
//
// # Stop Is Advisory
//
// Stop marks the job completed and notifies the client with job_stopped. The
// runtime call is not cancelled synchronously; the run loop observes the
// terminal state on its next event and abandons the stream, which tears down
// the runtime request via its context.
package job
