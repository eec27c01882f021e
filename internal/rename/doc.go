// Package rename runs the rename transaction: capture the new name from
// the user without letting the transient edit reach the backend, ask the
// backend for the edit, and patch the active buffer.
//
// The coordinator moves through Idle, CapturingPosition,
// AwaitingUserInput, RequestingEdit and ApplyingPatch, and always ends
// back in Idle. The session gate is closed only for the capture; it is
// open again before the backend request is sent.
package rename
