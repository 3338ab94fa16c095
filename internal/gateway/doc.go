// Package gateway orchestrates the scry-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the scry-gateway server.
// It owns and manages all major components: HTTP server, agent registry,
// stream broker, job coordinator, data store, and telemetry.
//
// # Gateway Struct
//
// The Gateway struct is the main entry point:
//
//	type Gateway struct {
//	    config      *config.Config
//	    store       store.Store
//	    registry    *registry.Registry
//	    broker      *broker.Broker
//	    tracker     *job.Tracker
//	    coordinator *job.Coordinator
//	    httpServer  *http.Server
//	    // ... and more
//	}
//
// # HTTP API
//
// The gateway exposes HTTP endpoints across api.go, stream.go, dashboards.go,
// and knowledge.go:
//
//   - GET /api/stream - Per-client SSE event stream
//   - POST /api/messages - Submit a message to an agent (returns a job)
//   - GET /api/jobs/{id} - Job status
//   - POST /api/jobs/{id}/stop - Request a running job stop
//   - GET /api/agents - List configured agent profiles
//   - POST /api/threads/resume - Rehydrate a runtime thread
//   - GET /api/threads - List conversation threads
//   - GET /api/threads/{id}/events - Replay recorded thread events
//   - POST /api/dashboards - Create a dashboard
//   - POST /api/dashboards/{id}/plots - Pin a chart to a dashboard
//   - POST /api/knowledge - Save deduplicated SQL snippets
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check
//
// # SSE Streaming
//
// Job progress is delivered over the client's stream as Server-Sent Events:
//
//	event: connected
//	data: {"type": "connected"}
//
//	event: thread_info
//	data: {"type": "thread_info", "job_id": "...", "thread_id": "..."}
//
//	event: agent_event
//	data: {"type": "agent_event", "job_id": "...", "data": {...}}
//
//	event: job_complete
//	data: {"type": "job_complete", "job_id": "...", "data": {"duration_ms": 4200}}
//
// Frame types: connected, thread_info, agent_event, job_complete,
// job_stopped, error.
//
// # Job Flow
//
// A submitted message runs through the coordinator:
//
//  1. Resolve the thread (reuse, resume, or start pending)
//  2. Consume runtime events, relaying each before persisting it
//  3. Rekey pending threads once the runtime announces the canonical ID
//  4. Emit job_complete or error and record the terminal status
//
// # Background Sweeps
//
// Run starts two periodic sweeps: idle thread eviction (registry) and
// terminal job purging (tracker). Both intervals come from config with
// package defaults when unset.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Graceful shutdown:
//
//	cancel()
//	gw.Shutdown(shutdownCtx)
//
// # Key Files
//
//   - gateway.go: Gateway struct, initialization, Run/Shutdown, sweeps
//   - api.go: Message, job, agent, and thread handlers
//   - stream.go: SSE stream handler
//   - dashboards.go: Dashboard and plot handlers
//   - knowledge.go: Knowledge base handlers
package gateway
