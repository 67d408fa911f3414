// Package store persists session replay logs in SQLite.
//
// A Store is an engine.SessionSink: sessions opened with
// engine.WithHistorySink(store) write every recorded action as it
// happens, and Restore rebuilds a session from what was written.
//
// # Layout
//
//   - sessions: one row per session id, with the provenance settings it
//     ran under and the id of the session it was cloned from
//   - actions: one row per recorded call, keyed by its content-addressed
//     id (ir.ActionID), body stored as canonical JSON
//
// # Ordering
//
// Reads are always ORDER BY seq ASC. Appends use ON CONFLICT DO NOTHING
// on the content id, so writing the same action twice is a no-op; a
// different action at an already used (session_id, seq) is an error.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
