// Package ir defines the compiled program representation shared by the
// compiler and the engine, and its canonical JSON interchange form.
//
// ir imports only term. The compiler produces a Program; the engine
// executes it; Encode/Decode move a Program across a process boundary
// by exporting every constant out of its term store.
//
// Key design constraints:
//   - NO float types anywhere; JSON numbers decode as int64 or fail
//   - Canonical JSON (RFC 8785 key order, NFC strings) for every hash
//   - Prefix tuple layout is owned by the step that consumes the prefix
//   - All JSON tags use snake_case
package ir
