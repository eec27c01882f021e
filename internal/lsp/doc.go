// Package lsp is the language-backend side of the bridge: a Language Server
// Protocol client that receives buffer snapshots and answers rename
// requests with line patches.
//
// # Architecture
//
//   - Transport: JSON-RPC 2.0 with Content-Length framing over stdio
//   - Server: one language server process, its initialize handshake, and
//     the mirror of the documents it has been sent
//   - Backend: adapts snapshots and rename requests from the bridge to
//     textDocument/didOpen, didChange and rename
//
// # Synchronization
//
// A full snapshot opens the document on first sight and afterwards replaces
// its whole content. A partial snapshot carries only the cursor line and is
// sent as a single-line range change. When the mirrored document cannot
// absorb a partial snapshot (not yet open, or the line count moved) the
// backend answers session.ErrFullSyncRequired and the caller resends the
// whole buffer.
//
// # Rename
//
// The server's WorkspaceEdit is converted into one patch.DocumentPatch per
// document. Text edits are folded into whole-line operations ordered from
// the bottom of the document up, so the line numbers stay valid when the
// operations are applied in sequence.
package lsp
