// Package app wires the bridge together: the editor connection, the
// buffer sync dispatcher, the rename coordinator and the language server.
//
// Bridge.Run owns the lifecycle. It returns when the editor disconnects,
// the language server exits or the context is cancelled, and shuts every
// component down on the way out.
package app
