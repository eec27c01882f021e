package app

import "errors"

// Bridge errors.
var (
	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("bridge already running")

	// ErrComponentNotAvailable indicates a required component is missing
	// from Options.
	ErrComponentNotAvailable = errors.New("component not available")

	// ErrServerExited indicates the language server process ended while
	// the bridge was running.
	ErrServerExited = errors.New("language server exited")

	// errEditorClosed ends the run group when the editor disconnects.
	errEditorClosed = errors.New("editor disconnected")
)
