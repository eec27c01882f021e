package neovim

import (
	"context"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neovim/go-client/nvim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lspbridge/internal/editor"
	"github.com/dshills/lspbridge/internal/patch"
)

// startNvim embeds a clean headless Neovim. Tests are skipped when nvim is
// not installed.
func startNvim(t *testing.T) (*nvim.Nvim, *Editor) {
	t.Helper()
	if _, err := exec.LookPath("nvim"); err != nil {
		t.Skip("nvim not found in PATH")
	}

	v, err := nvim.NewChildProcess(
		nvim.ChildProcessArgs("-u", "NONE", "-n", "-i", "NONE", "--embed", "--headless"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	e := New(v, nil)
	require.NoError(t, e.Install(Handlers{}))
	return v, e
}

func setBuffer(t *testing.T, v *nvim.Nvim, lines ...string) {
	t.Helper()
	buf, err := v.CurrentBuffer()
	require.NoError(t, err)
	require.NoError(t, v.SetBufferLines(buf, 0, -1, true, toBytes(lines)))
}

func TestEditor_Reads(t *testing.T) {
	v, e := startNvim(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, v.Command("edit "+path))
	require.NoError(t, v.Command("setlocal filetype=go"))
	setBuffer(t, v, "package main", "", "func main() {}")

	id, err := e.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, path, id.File)
	assert.Equal(t, "go", id.Filetype)
	assert.NotEmpty(t, id.Cwd)

	require.NoError(t, e.SetCursor(ctx, editor.Position{Line: 3, Column: 6}))
	pos, err := e.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, editor.Position{Line: 3, Column: 6}, pos)

	line, err := e.CurrentLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "func main() {}", line)

	lines, err := e.Lines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"package main", "", "func main() {}"}, lines)

	n, err := e.LineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEditor_ChangeTickAdvancesOnEdit(t *testing.T) {
	v, e := startNvim(t)
	ctx := context.Background()
	setBuffer(t, v, "a")

	before, err := e.ChangeTick(ctx)
	require.NoError(t, err)
	require.NoError(t, e.SetLines(ctx, 1, []string{"b"}))
	after, err := e.ChangeTick(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestEditor_LineEdits(t *testing.T) {
	v, e := startNvim(t)
	ctx := context.Background()
	setBuffer(t, v, "one", "two", "three")

	require.NoError(t, e.SetLines(ctx, 3, []string{"THREE", "four"}))
	require.NoError(t, e.AppendLines(ctx, 0, []string{"zero"}))
	require.NoError(t, e.DeleteLine(ctx, 3))

	lines, err := e.Lines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"zero", "one", "THREE", "four"}, lines)

	assert.ErrorIs(t, e.DeleteLine(ctx, 9), editor.ErrLineOutOfRange)
	assert.ErrorIs(t, e.SetLines(ctx, 0, []string{"x"}), editor.ErrLineOutOfRange)
	assert.ErrorIs(t, e.AppendLines(ctx, 5, []string{"x"}), editor.ErrLineOutOfRange)
}

func TestEditor_AppliesPatch(t *testing.T) {
	v, e := startNvim(t)
	ctx := context.Background()
	setBuffer(t, v, "let x = 1", "print(x)", "drop me")
	require.NoError(t, e.SetCursor(ctx, editor.Position{Line: 2, Column: 7}))

	err := patch.NewApplier(e).Apply(ctx, []patch.Operation{
		{Kind: patch.Delete, Line: 3},
		{Kind: patch.Replace, Line: 1, Value: []string{"let y = 1"}},
		{Kind: patch.Replace, Line: 2, Value: []string{"print(y)"}},
	})
	require.NoError(t, err)

	lines, err := e.Lines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"let y = 1", "print(y)"}, lines)

	pos, err := e.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, editor.Position{Line: 2, Column: 7}, pos)
}

func TestEditor_CaptureReplacement(t *testing.T) {
	v, e := startNvim(t)
	ctx := context.Background()
	setBuffer(t, v, "let x = 1")
	require.NoError(t, e.SetCursor(ctx, editor.Position{Line: 1, Column: 5}))

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := e.CaptureReplacement(ctx)
		done <- result{text, err}
	}()

	require.Eventually(t, func() bool {
		m, err := v.Mode()
		return err == nil && m.Mode == "i"
	}, 5*time.Second, 10*time.Millisecond)

	_, err := v.Input("total<Esc>")
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "total", r.text)
	case <-time.After(5 * time.Second):
		t.Fatal("capture did not finish")
	}

	lines, err := e.Lines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"let x = 1"}, lines)
}

func TestEditor_CaptureCancelledRestores(t *testing.T) {
	v, e := startNvim(t)
	setBuffer(t, v, "let x = 1")
	require.NoError(t, e.SetCursor(context.Background(), editor.Position{Line: 1, Column: 5}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.CaptureReplacement(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool {
		m, err := v.Mode()
		return err == nil && m.Mode == "i"
	}, 5*time.Second, 10*time.Millisecond)
	_, err := v.Input("partial")
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("capture did not finish")
	}

	lines, err := e.Lines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"let x = 1"}, lines)
}

func TestEditor_CaptureRejectsReentry(t *testing.T) {
	_, e := startNvim(t)

	_, err := e.beginCapture()
	require.NoError(t, err)
	defer e.endCapture()

	_, err = e.CaptureReplacement(context.Background())
	assert.ErrorIs(t, err, editor.ErrCaptureInProgress)
}

func TestEditor_Warn(t *testing.T) {
	v, e := startNvim(t)

	require.NoError(t, e.Warn(context.Background(), "rename timed out"))

	var messages string
	require.NoError(t, v.Eval("execute('messages')", &messages))
	assert.Contains(t, messages, "rename timed out")
}

func TestEditor_AutocmdsNotify(t *testing.T) {
	if _, err := exec.LookPath("nvim"); err != nil {
		t.Skip("nvim not found in PATH")
	}
	v, err := nvim.NewChildProcess(
		nvim.ChildProcessArgs("-u", "NONE", "-n", "-i", "NONE", "--embed", "--headless"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	var entered, renamed atomic.Int32
	e := New(v, nil)
	require.NoError(t, e.Install(Handlers{
		BufferEntered: func() { entered.Add(1) },
		Rename:        func() { renamed.Add(1) },
	}))
	require.NoError(t, e.DefineAutocmds())

	require.NoError(t, v.Command("enew"))
	require.NoError(t, v.Command(CommandRename))

	require.Eventually(t, func() bool {
		return entered.Load() > 0 && renamed.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, e.RemoveAutocmds())
	var exists int
	require.NoError(t, v.Eval("exists(':"+CommandRename+"')", &exists))
	assert.Zero(t, exists)
}
