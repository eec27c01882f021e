package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lspbridge dev")
	assert.Contains(t, out, "Commit: unknown")
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "main.go", "let x = 1\nprint(x)\nold\n")
	ops := writeFile(t, dir, "patch.json", `[
		{"op": "delete", "line": 3},
		{"op": "replace", "line": 1, "val": ["let y = 1"]},
		{"op": "replace", "line": 2, "val": ["print(y)"]},
		{"op": "append", "line": 2, "val": ["done()"]}
	]`)

	out, err := execute(t, "replay", file, ops)
	require.NoError(t, err)
	assert.Equal(t, "let y = 1\nprint(y)\ndone()\n", out)

	unchanged, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "let x = 1\nprint(x)\nold\n", string(unchanged))
}

func TestReplayCommand_CRLF(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "a.txt", "one\r\ntwo\r\n")
	ops := writeFile(t, dir, "p.json", `[{"op": "replace", "line": 2, "val": ["TWO"]}]`)

	out, err := execute(t, "replay", file, ops)
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\n", out)
}

func TestReplayCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "a.txt", "one\n")

	tests := []struct {
		name  string
		patch string
	}{
		{"unknown op", `[{"op": "move", "line": 1}]`},
		{"line out of range", `[{"op": "delete", "line": 4}]`},
		{"not json", `{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := writeFile(t, dir, "p.json", tt.patch)
			_, err := execute(t, "replay", file, ops)
			assert.Error(t, err)
		})
	}

	_, err := execute(t, "replay", filepath.Join(dir, "missing.txt"), file)
	assert.Error(t, err)

	_, err = execute(t, "replay", file)
	assert.Error(t, err)
}

func TestRun_ExitCodes(t *testing.T) {
	assert.Equal(t, 0, run([]string{"version"}))
	assert.Equal(t, 1, run([]string{"no-such-command"}))
}

func TestServeFlags_Overrides(t *testing.T) {
	f := &serveFlags{command: "gopls", args: []string{"serve"}, logLevel: "debug"}
	cfg := f.overrides()
	assert.Equal(t, "gopls", cfg.Server.Command)
	assert.Equal(t, []string{"serve"}, cfg.Server.Args)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.Log.File)
}

func TestResolveWorkspace(t *testing.T) {
	ws, err := resolveWorkspace("/flag", "/config")
	require.NoError(t, err)
	assert.Equal(t, "/flag", ws)

	ws, err = resolveWorkspace("", "/config")
	require.NoError(t, err)
	assert.Equal(t, "/config", ws)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	ws, err = resolveWorkspace("", "")
	require.NoError(t, err)
	assert.Equal(t, cwd, ws)
}

func TestServe_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "cfg.toml", "[server\n")

	_, err := execute(t, "serve", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")

	empty := writeFile(t, dir, "empty.yaml", "log:\n  level: info\n")
	t.Setenv("LSPBRIDGE_SERVER_COMMAND", "")
	_, err = execute(t, "serve", "--config", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}
