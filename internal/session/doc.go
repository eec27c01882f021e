// Package session holds the per-editor-session synchronization state shared
// by the update dispatcher and the rename coordinator.
//
// A Session is an explicitly owned context object: it records the identity of
// the active buffer (working directory, file, filetype) and the high-water
// revision last pushed to the language backend. It also owns the Gate, the
// mutual-exclusion primitive that suspends synchronization while an exclusive
// transaction (for example a rename) is mutating the buffer.
//
// # Revisions
//
// The editor exposes a native change counter per buffer. ShouldSync compares
// an observed counter with the stored high-water mark and records it, so a
// burst of edits collapses to the latest observed revision. Skipped
// intermediate revisions are never synced individually; full and partial
// syncs are snapshots, not diffs.
//
// # Gate
//
// Sync attempts take a shared hold with TryEnter and release it with Leave.
// A transaction takes the gate exclusively with Close and releases it with
// Open. TryEnter fails as soon as a transaction holds or waits for the gate,
// so there is no window between checking the gate and starting a sync.
package session
