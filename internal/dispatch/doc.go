// Package dispatch turns editor change notifications into backend syncs.
//
// Three entry points feed it: BufferEntered, TextChanged and
// TextChangedInsert. Each is debounced by its own window (100ms, 200ms and
// immediate by default) and every resulting sync runs on one serial
// worker, so the backend never sees two syncs at once and sees them in
// the order they were scheduled. Buffer entry and normal-mode changes send
// the whole buffer; insert-mode changes send only the current line.
//
// A sync is attempted only when the session's gate admits it and the
// editor's change counter moved past the last synchronized revision.
// Failures are logged and dropped; nothing propagates to the editor.
package dispatch
