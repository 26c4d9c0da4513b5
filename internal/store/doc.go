// Package store provides SQLite-backed durable storage for solution logs.
//
// The store implements an append-only log with:
//   - Runs: one record per solve invocation (program hash, status, step count)
//   - Solutions: each yielded solution as canonical JSON, keyed by content hash
//   - Facts: the same solutions exploded per fact for relation filtering
//
// # Critical Patterns
//
// Solution-Level Idempotency
//   - PRIMARY KEY(run_id, hash) on solutions
//   - Recording the same solution twice in a run is a no-op
//
// Logical Time
//   - All ordering uses seq INTEGER, NEVER timestamps
//   - Run ids are UUIDv7 for uniqueness only; order comes from seq
//
// Deterministic Query Results
//   - All queries MUST include an ORDER BY ending in a BINARY-collated key
//   - Ensures identical results across repeated reads
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Solution hashes are computed by ir.SolutionHash over canonical JSON with
// domain separation.
package store
