package neovim

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/neovim/go-client/nvim"

	"github.com/dshills/lspbridge/internal/editor"
	"github.com/dshills/lspbridge/internal/logging"
	"github.com/dshills/lspbridge/internal/session"
)

// RPC notification methods sent from Neovim to the bridge.
const (
	MethodBufferEntered     = "lspbridge_buf_enter"
	MethodTextChanged       = "lspbridge_text_changed"
	MethodTextChangedInsert = "lspbridge_text_changed_i"
	MethodRename            = "lspbridge_rename"
	MethodInsertLeave       = "lspbridge_insert_leave"
)

// Editor implements editor.Editor against the current Neovim buffer and
// window.
type Editor struct {
	v   *nvim.Nvim
	log *logging.Logger

	mu        sync.Mutex
	capturing bool
	left      chan struct{}
}

// New wraps an RPC connection to Neovim.
func New(v *nvim.Nvim, log *logging.Logger) *Editor {
	if log == nil {
		log = logging.Nop()
	}
	return &Editor{v: v, log: log.WithComponent("neovim")}
}

// Identity reads the working directory, the absolute path and the
// filetype of the current buffer.
func (e *Editor) Identity(_ context.Context) (session.Identity, error) {
	var id session.Identity
	b := e.v.NewBatch()
	b.Eval("getcwd()", &id.Cwd)
	b.Eval("expand('%:p')", &id.File)
	b.Eval("&filetype", &id.Filetype)
	if err := b.Execute(); err != nil {
		return session.Identity{}, fmt.Errorf("read identity: %w", err)
	}
	return id, nil
}

// Cursor returns the cursor of the current window. Neovim reports a
// 0-based byte column which is shifted to 1-based.
func (e *Editor) Cursor(_ context.Context) (editor.Position, error) {
	win, err := e.v.CurrentWindow()
	if err != nil {
		return editor.Position{}, err
	}
	pos, err := e.v.WindowCursor(win)
	if err != nil {
		return editor.Position{}, err
	}
	return editor.Position{Line: pos[0], Column: pos[1] + 1}, nil
}

// SetCursor moves the cursor of the current window.
func (e *Editor) SetCursor(_ context.Context, pos editor.Position) error {
	win, err := e.v.CurrentWindow()
	if err != nil {
		return err
	}
	col := pos.Column - 1
	if col < 0 {
		col = 0
	}
	return e.v.SetWindowCursor(win, [2]int{pos.Line, col})
}

// CurrentLine returns the line under the cursor.
func (e *Editor) CurrentLine(_ context.Context) (string, error) {
	line, err := e.v.CurrentLine()
	if err != nil {
		return "", err
	}
	return string(line), nil
}

// Lines returns every line of the current buffer.
func (e *Editor) Lines(_ context.Context) ([]string, error) {
	buf, err := e.v.CurrentBuffer()
	if err != nil {
		return nil, err
	}
	raw, err := e.v.BufferLines(buf, 0, -1, true)
	if err != nil {
		return nil, err
	}
	return fromBytes(raw), nil
}

// LineCount returns the number of lines in the current buffer.
func (e *Editor) LineCount(_ context.Context) (int, error) {
	buf, err := e.v.CurrentBuffer()
	if err != nil {
		return 0, err
	}
	return e.v.BufferLineCount(buf)
}

// ChangeTick returns b:changedtick of the current buffer.
func (e *Editor) ChangeTick(_ context.Context) (int, error) {
	var tick int
	if err := e.v.Eval("b:changedtick", &tick); err != nil {
		return 0, err
	}
	return tick, nil
}

// DeleteLine removes the 1-based line.
func (e *Editor) DeleteLine(_ context.Context, line int) error {
	buf, count, err := e.bufferAndCount()
	if err != nil {
		return err
	}
	if line < 1 || line > count {
		return editor.ErrLineOutOfRange
	}
	return e.v.SetBufferLines(buf, line-1, line, true, [][]byte{})
}

// SetLines overwrites lines from the 1-based line, extending the buffer
// when value runs past its end.
func (e *Editor) SetLines(_ context.Context, line int, value []string) error {
	buf, count, err := e.bufferAndCount()
	if err != nil {
		return err
	}
	if line < 1 || line > count+1 {
		return editor.ErrLineOutOfRange
	}
	start := line - 1
	end := min(start+len(value), count)
	return e.v.SetBufferLines(buf, start, end, true, toBytes(value))
}

// AppendLines inserts value after the 1-based line. Line 0 inserts at the
// top.
func (e *Editor) AppendLines(_ context.Context, line int, value []string) error {
	buf, count, err := e.bufferAndCount()
	if err != nil {
		return err
	}
	if line < 0 || line > count {
		return editor.ErrLineOutOfRange
	}
	return e.v.SetBufferLines(buf, line, line, true, toBytes(value))
}

// Warn shows msg through vim.notify at warning level.
func (e *Editor) Warn(_ context.Context, msg string) error {
	return e.v.ExecLua("vim.notify(...)", nil, msg, warnLevel)
}

// warnLevel is vim.log.levels.WARN.
const warnLevel = 3

func (e *Editor) bufferAndCount() (nvim.Buffer, int, error) {
	buf, err := e.v.CurrentBuffer()
	if err != nil {
		return 0, 0, err
	}
	count, err := e.v.BufferLineCount(buf)
	if err != nil {
		return 0, 0, err
	}
	return buf, count, nil
}

// CaptureReplacement runs "ciw" on the word under the cursor, waits for
// the user to leave insert mode, reads the inserted text from the "."
// register and restores the buffer.
func (e *Editor) CaptureReplacement(ctx context.Context) (string, error) {
	left, err := e.beginCapture()
	if err != nil {
		return "", err
	}
	defer e.endCapture()

	buf, err := e.v.CurrentBuffer()
	if err != nil {
		return "", err
	}
	saved, err := e.v.BufferLines(buf, 0, -1, true)
	if err != nil {
		return "", err
	}
	cursor, err := e.Cursor(ctx)
	if err != nil {
		return "", err
	}
	defer e.restore(buf, saved, cursor)

	if err := e.v.ExecLua(insertLeaveLua, nil, e.v.ChannelID(), MethodInsertLeave); err != nil {
		return "", fmt.Errorf("arm insert leave: %w", err)
	}
	if err := e.v.FeedKeys("ciw", "n", false); err != nil {
		return "", fmt.Errorf("start capture: %w", err)
	}

	select {
	case <-left:
	case <-ctx.Done():
		_ = e.v.Command("stopinsert")
		return "", ctx.Err()
	}

	var text string
	if err := e.v.Eval("@.", &text); err != nil {
		return "", fmt.Errorf("read inserted text: %w", err)
	}
	return text, nil
}

// insertLeaveLua arms a one-shot InsertLeave notification.
const insertLeaveLua = `
local chan, method = ...
vim.api.nvim_create_autocmd('InsertLeave', {
  once = true,
  callback = function() vim.rpcnotify(chan, method) end,
})
`

func (e *Editor) beginCapture() (<-chan struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capturing {
		return nil, editor.ErrCaptureInProgress
	}
	e.capturing = true
	e.left = make(chan struct{}, 1)
	return e.left, nil
}

func (e *Editor) endCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capturing = false
	e.left = nil
}

// insertLeft is the MethodInsertLeave handler.
func (e *Editor) insertLeft() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.left == nil {
		return
	}
	select {
	case e.left <- struct{}{}:
	default:
	}
}

// restore undoes the capture edit and rewrites the buffer if undo did not
// bring back the saved text.
func (e *Editor) restore(buf nvim.Buffer, saved [][]byte, cursor editor.Position) {
	now, err := e.v.BufferLines(buf, 0, -1, true)
	if err == nil && !equalLines(now, saved) {
		if err := e.v.Command("silent! undo"); err != nil {
			e.log.Debug().Err(err).Msg("undo after capture failed")
		}
		now, err = e.v.BufferLines(buf, 0, -1, true)
	}
	if err != nil || !equalLines(now, saved) {
		if err := e.v.SetBufferLines(buf, 0, -1, true, saved); err != nil {
			e.log.Warn().Err(err).Msg("restore after capture failed")
		}
	}
	if err := e.SetCursor(context.Background(), cursor); err != nil {
		e.log.Debug().Err(err).Msg("restore cursor failed")
	}
}

func equalLines(a, b [][]byte) bool {
	return slices.EqualFunc(a, b, func(x, y []byte) bool { return string(x) == string(y) })
}

func toBytes(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}

func fromBytes(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out
}

var _ editor.Editor = (*Editor)(nil)
