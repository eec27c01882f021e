package editor

import (
	"context"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/lspbridge/internal/session"
)

// Typist answers an input capture. It receives the word being replaced and
// returns the text the user typed.
type Typist func(word string) string

// Buffer is an in-memory, single-buffer editor.
//
// Every mutation bumps the change tick, including the rollback at the end
// of an input capture, mirroring how an editor counts undo as a change.
// Buffer is safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	identity session.Identity
	lines    []string
	cursor   Position
	tick     int
	warnings []string

	typist    Typist
	capturing bool
	typed     chan string
}

// NewBuffer creates a buffer holding lines with the cursor on 1:1.
// An empty buffer holds a single empty line.
func NewBuffer(id session.Identity, lines ...string) *Buffer {
	if len(lines) == 0 {
		lines = []string{""}
	}
	return &Buffer{
		identity: id,
		lines:    append([]string(nil), lines...),
		cursor:   Position{Line: 1, Column: 1},
		tick:     1,
		typed:    make(chan string, 1),
	}
}

// SetTypist installs a function that answers captures synchronously.
// Without a typist, captures wait for Type.
func (b *Buffer) SetTypist(t Typist) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typist = t
}

// Type finishes a pending capture with text, as if the user typed it and
// left insert mode.
func (b *Buffer) Type(text string) {
	b.typed <- text
}

// Capturing reports whether a capture is waiting for input.
func (b *Buffer) Capturing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capturing
}

// SetIdentity replaces the buffer's identity, as when switching files.
func (b *Buffer) SetIdentity(id session.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.identity = id
}

// Identity implements Reader.
func (b *Buffer) Identity(_ context.Context) (session.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identity, nil
}

// Cursor implements Reader.
func (b *Buffer) Cursor(_ context.Context) (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor, nil
}

// CurrentLine implements Reader.
func (b *Buffer) CurrentLine(_ context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lines[b.cursor.Line-1], nil
}

// Lines implements Reader. The returned slice is a copy.
func (b *Buffer) Lines(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...), nil
}

// LineCount implements Reader.
func (b *Buffer) LineCount(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines), nil
}

// ChangeTick implements Reader.
func (b *Buffer) ChangeTick(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tick, nil
}

// SetCursor implements LineEditor. The column is clamped to the line.
func (b *Buffer) SetCursor(_ context.Context, pos Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos.Line < 1 || pos.Line > len(b.lines) {
		return ErrLineOutOfRange
	}
	b.cursor = Position{Line: pos.Line, Column: clampColumn(b.lines[pos.Line-1], pos.Column)}
	return nil
}

// DeleteLine implements LineEditor.
func (b *Buffer) DeleteLine(_ context.Context, line int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if line < 1 || line > len(b.lines) {
		return ErrLineOutOfRange
	}
	b.lines = append(b.lines[:line-1], b.lines[line:]...)
	if len(b.lines) == 0 {
		b.lines = []string{""}
	}
	b.clampCursorLocked()
	b.tick++
	return nil
}

// SetLines implements LineEditor.
func (b *Buffer) SetLines(_ context.Context, line int, value []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if line < 1 || line > len(b.lines)+1 {
		return ErrLineOutOfRange
	}
	for i, v := range value {
		idx := line - 1 + i
		if idx < len(b.lines) {
			b.lines[idx] = v
		} else {
			b.lines = append(b.lines, v)
		}
	}
	b.tick++
	return nil
}

// AppendLines implements LineEditor.
func (b *Buffer) AppendLines(_ context.Context, line int, value []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if line < 0 || line > len(b.lines) {
		return ErrLineOutOfRange
	}
	next := make([]string, 0, len(b.lines)+len(value))
	next = append(next, b.lines[:line]...)
	next = append(next, value...)
	next = append(next, b.lines[line:]...)
	b.lines = next
	b.tick++
	return nil
}

// Warn implements Warner by recording the message.
func (b *Buffer) Warn(_ context.Context, msg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.warnings = append(b.warnings, msg)
	return nil
}

// Warnings returns the messages recorded by Warn.
func (b *Buffer) Warnings() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.warnings...)
}

// CaptureReplacement implements InputCapturer. The word under the cursor is
// cleared (change tick bumps), the typed text is inserted in its place, and
// the buffer is then restored to its prior lines and cursor.
func (b *Buffer) CaptureReplacement(ctx context.Context) (string, error) {
	b.mu.Lock()
	if b.capturing {
		b.mu.Unlock()
		return "", ErrCaptureInProgress
	}
	b.capturing = true

	saved := append([]string(nil), b.lines...)
	savedCursor := b.cursor

	row := b.cursor.Line - 1
	start, end := wordBounds(b.lines[row], b.cursor.Column-1)
	word := b.lines[row][start:end]
	prefix, suffix := b.lines[row][:start], b.lines[row][end:]
	b.lines[row] = prefix + suffix
	b.tick++
	typist := b.typist
	b.mu.Unlock()

	var text string
	var err error
	if typist != nil {
		text = typist(word)
	} else {
		select {
		case text = <-b.typed:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.lines[row] = prefix + text + suffix
		b.tick++
	}
	b.lines = saved
	b.cursor = savedCursor
	b.tick++
	b.capturing = false
	return text, err
}

func (b *Buffer) clampCursorLocked() {
	if b.cursor.Line > len(b.lines) {
		b.cursor.Line = len(b.lines)
	}
	b.cursor.Column = clampColumn(b.lines[b.cursor.Line-1], b.cursor.Column)
}

func clampColumn(line string, col int) int {
	if col < 1 {
		return 1
	}
	if n := len(line); col > n {
		if n == 0 {
			return 1
		}
		return n
	}
	return col
}

// wordBounds returns the byte range of the keyword around offset. Off a
// keyword it returns an empty range at offset.
func wordBounds(line string, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(line) {
		offset = len(line)
	}
	if offset == len(line) || !isWordByte(line, offset) {
		return offset, offset
	}

	start := offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !isWordRune(r) {
			break
		}
		start -= size
	}
	end := offset
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !isWordRune(r) {
			break
		}
		end += size
	}
	return start, end
}

func isWordByte(line string, offset int) bool {
	r, _ := utf8.DecodeRuneInString(line[offset:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
