// Package runtime defines how the gateway talks to conversational-agent
// runtimes.
//
// A runtime is a black box that owns threads and produces structured turn
// events. The gateway never interprets turn content beyond a few envelope
// fields (event type, thread id, completed assistant messages); payloads are
// relayed to clients and persisted verbatim.
//
// # Sessions
//
// Client.StartThread prepares a session for a brand-new thread with no
// canonical id; the runtime announces the id via the first thread.started
// event. Client.ResumeThread reattaches to an existing canonical id and is
// allowed to fail when the runtime has dropped the thread - callers fall
// back to a fresh session.
//
// # Wire Protocol
//
// HTTPClient speaks newline-delimited JSON over streaming HTTP:
//
//	POST {base}/v1/runs
//	{"thread_id": "...", "message": "...", "options": {...}}
//
//	HTTP/1.1 200 OK
//	Content-Type: application/x-ndjson
//
//	{"type":"thread.started","thread_id":"th_1"}
//	{"type":"item.completed","thread_id":"th_1","item":{"type":"message","role":"assistant","text":"hi"}}
//	{"type":"turn.completed","thread_id":"th_1"}
//
// Undecodable lines are skipped with a warning. A mid-stream transport
// failure is surfaced as a terminal error event so consumers always see the
// turn end.
package runtime
