// Package registry manages the agent catalog and live runtime thread handles.
//
// # Overview
//
// The registry holds two things: the static catalog of agent profiles loaded
// from TOML files at startup, and the map of live thread handles attaching
// gateway threads to runtime sessions.
//
// # Profiles
//
// Each agent type is described by one TOML file in the profiles directory:
//
//	type = "data_analysis"
//	name = "Data Analysis"
//	description = "Answers questions against the warehouse"
//	endpoint = "http://localhost:8848"
//	request_timeout = "120s"
//
//	[options]
//	verbosity = "high"
//
// Values support ${VAR} environment expansion. A file that fails to parse is
// logged and skipped; the remaining profiles still load. The catalog is
// read-only after startup.
//
// # Thread Refs
//
// A ThreadRef is a tagged variant: pending or canonical. Starting a thread
// registers the handle under a local placeholder id (pending), because the
// runtime only reveals the durable thread id on the first event of the run.
// Once that id arrives, RekeyThread moves the handle under the canonical id
// and the ref becomes canonical. Refs never mutate in place; operations
// return fresh snapshots.
//
// # Lifecycle
//
//	StartThread  -> pending handle, new runtime session
//	RekeyThread  -> pending handle re-keyed under canonical id
//	ResumeThread -> canonical handle, reattached session (may fail; callers
//	                fall back to StartThread)
//	TouchThread  -> bumps LastActivity so the idle sweep skips the handle
//	EvictIdleThreads -> closes and drops handles idle past the threshold
//
// # Thread Safety
//
// The profile catalog and handle map are guarded by a single RWMutex. Handle
// lookups return value snapshots, so callers never observe a rekey mid-read.
package registry
