// Package store provides SQLite-backed persistence for engine traces.
//
// A run groups the ordered trace events of one engine session:
//   - Runs: one row per engine session, finalized with a tick count and
//     trace digest
//   - Trace events: one row per lifecycle transition, keyed by (run, seq)
//
// # Critical Patterns
//
// Logical ordering:
//   - All reads use ORDER BY seq ASC; wall time is never stored
//   - Rewriting the same (run, seq) is a no-op, so replayed writes are
//     idempotent
//
// Canonical values:
//   - Event values are stored as RFC 8785 canonical JSON (ir.MarshalCanonical)
//   - Reads decode through ir.UnmarshalValue
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
