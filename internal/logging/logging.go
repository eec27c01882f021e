// Package logging provides a thin wrapper around zerolog.Logger used by every
// component of the bridge.
//
// Neovim owns the process's stdout when the bridge runs as an RPC child, so
// log output goes to a file or to stderr, never to stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Logger embeds zerolog.Logger so the full zerolog API is available.
type Logger struct {
	zerolog.Logger
}

// New creates a JSON logger writing to w with a role field and timestamps.
// A nil w writes to stderr.
func New(role string, w io.Writer, level zerolog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	l := zerolog.New(w).Level(level).With().
		Str("role", role).
		Timestamp().
		Logger()
	return &Logger{l}
}

// Open creates a logger appending to the file at path, creating parent
// directories as needed. An empty path logs to stderr. The returned closer
// must be closed on shutdown.
func Open(role, path string, level zerolog.Level) (*Logger, io.Closer, error) {
	if path == "" {
		return New(role, os.Stderr, level), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(role, f, level), f, nil
}

// Nop returns a logger that discards everything. Intended for tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// WithComponent returns a child logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{l.With().Str("component", component).Logger()}
}

// SetLevel returns a copy of the logger at the given level.
func (l *Logger) SetLevel(level zerolog.Level) *Logger {
	return &Logger{l.Level(level)}
}

// ParseLevel parses a level name such as "debug" or "WARN". Unknown or
// empty names fall back to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
