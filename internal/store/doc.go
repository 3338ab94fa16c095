// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - Thread: durable conversation metadata keyed by the runtime's canonical
//     thread id. Title is sticky (first write wins); other fields take the
//     latest value.
//   - ThreadEvent: one entry in a thread's append-only event log. The store
//     assigns a monotonic sequence on append; replay order is append order.
//   - Dashboard / Plot: pinned chart plots with a fixed per-dashboard
//     capacity (MaxPlotsPerDashboard). Capacity checks run in the same
//     transaction as the write, so an overflow never mutates anything.
//   - KnowledgeEntry: content-addressed SQL snippets deduplicated by a
//     BLAKE2b hash of the normalized text.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 UTC text. The schema is created on open
// and idempotent column migrations run automatically.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDashboardFull: plot add/move would exceed MaxPlotsPerDashboard
//
// All methods accept context.Context for cancellation support.
//
// # Replay Tolerance
//
// ThreadEvents never fails on a malformed stored payload: invalid JSON is
// logged and returned as a raw JSON string so history endpoints keep working.
package store
