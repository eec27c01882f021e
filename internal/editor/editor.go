// Package editor defines what the bridge needs from a text editor and
// provides an in-memory implementation.
//
// The contract is split by capability so each component asks only for what
// it uses: the dispatcher reads (Reader), the patch applier edits lines
// (LineEditor), and the rename coordinator captures user input
// (InputCapturer) and surfaces warnings (Warner).
package editor

import (
	"context"
	"errors"

	"github.com/dshills/lspbridge/internal/session"
)

var (
	// ErrLineOutOfRange indicates a line number outside the buffer.
	ErrLineOutOfRange = errors.New("line out of range")

	// ErrCaptureInProgress indicates an input capture is already running.
	ErrCaptureInProgress = errors.New("input capture already in progress")
)

// Position is a cursor position. Line and Column are both 1-based.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Reader reads the state of the active buffer. Implementations pull fresh
// state on every call; nothing is cached between calls.
type Reader interface {
	Identity(ctx context.Context) (session.Identity, error)
	Cursor(ctx context.Context) (Position, error)
	CurrentLine(ctx context.Context) (string, error)
	Lines(ctx context.Context) ([]string, error)
	LineCount(ctx context.Context) (int, error)

	// ChangeTick returns the buffer's native change counter.
	ChangeTick(ctx context.Context) (int, error)
}

// LineEditor mutates the active buffer line by line.
type LineEditor interface {
	Cursor(ctx context.Context) (Position, error)
	SetCursor(ctx context.Context, pos Position) error
	LineCount(ctx context.Context) (int, error)

	// DeleteLine removes the line at line.
	DeleteLine(ctx context.Context, line int) error

	// SetLines overwrites lines starting at line, one per value, extending
	// the buffer when the values run past its end.
	SetLines(ctx context.Context, line int, value []string) error

	// AppendLines inserts value after line. Line 0 inserts at the top.
	AppendLines(ctx context.Context, line int, value []string) error
}

// InputCapturer temporarily puts the editor in edit mode on the word under
// the cursor, waits for the user to finish typing a replacement, rolls the
// buffer back to its prior text, and returns what was typed.
//
// The rollback is guaranteed: when CaptureReplacement returns, with or
// without an error, the buffer text equals the text before the call.
type InputCapturer interface {
	CaptureReplacement(ctx context.Context) (string, error)
}

// Warner surfaces a warning to the user.
type Warner interface {
	Warn(ctx context.Context, msg string) error
}

// Editor is the full collaborator used by the bridge.
type Editor interface {
	Reader
	LineEditor
	InputCapturer
	Warner
}
