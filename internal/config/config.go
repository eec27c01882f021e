package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Duration is a time.Duration read from text such as "150ms" or "10s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats the duration like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete bridge configuration.
type Config struct {
	Sync   Sync   `toml:"sync" yaml:"sync" envPrefix:"SYNC_"`
	Rename Rename `toml:"rename" yaml:"rename" envPrefix:"RENAME_"`
	Server Server `toml:"server" yaml:"server" envPrefix:"SERVER_"`
	Log    Log    `toml:"log" yaml:"log" envPrefix:"LOG_"`
}

// Sync holds the debounce windows of the buffer sync entry points.
type Sync struct {
	// BufferEntered delays the full sync after switching buffers.
	// Env: LSPBRIDGE_SYNC_BUFFER_ENTERED
	BufferEntered Duration `toml:"buffer_entered" yaml:"buffer_entered" env:"BUFFER_ENTERED"`

	// TextChanged delays the sync after a normal-mode edit.
	// Env: LSPBRIDGE_SYNC_TEXT_CHANGED
	TextChanged Duration `toml:"text_changed" yaml:"text_changed" env:"TEXT_CHANGED"`

	// TextChangedInsert delays the sync after an insert-mode edit. Zero
	// syncs on every keystroke.
	// Env: LSPBRIDGE_SYNC_TEXT_CHANGED_INSERT
	TextChangedInsert Duration `toml:"text_changed_insert" yaml:"text_changed_insert" env:"TEXT_CHANGED_INSERT"`
}

// Rename holds the rename transaction settings.
type Rename struct {
	// Timeout bounds the backend rename request.
	// Env: LSPBRIDGE_RENAME_TIMEOUT
	Timeout Duration `toml:"timeout" yaml:"timeout" env:"TIMEOUT"`
}

// Server describes the language server process.
type Server struct {
	// Command is the server executable.
	// Env: LSPBRIDGE_SERVER_COMMAND
	Command string `toml:"command" yaml:"command" env:"COMMAND"`

	// Args are passed to Command.
	// Env: LSPBRIDGE_SERVER_ARGS (comma separated)
	Args []string `toml:"args" yaml:"args" env:"ARGS"`

	// Env lists extra KEY=VALUE pairs for the server process.
	// Env: LSPBRIDGE_SERVER_ENV (comma separated)
	Env []string `toml:"env" yaml:"env" env:"ENV"`

	// WorkDir is the server's working directory and workspace root.
	// Env: LSPBRIDGE_SERVER_WORKDIR
	WorkDir string `toml:"workdir" yaml:"workdir" env:"WORKDIR"`

	// LanguageIDs maps file extensions (".go") or editor filetypes to LSP
	// language identifiers.
	// Env: LSPBRIDGE_SERVER_LANGUAGE_IDS (".go:go,.rs:rust")
	LanguageIDs map[string]string `toml:"language_ids" yaml:"language_ids" env:"LANGUAGE_IDS"`

	// Timeout bounds requests that are not renames (initialize, shutdown).
	// Env: LSPBRIDGE_SERVER_TIMEOUT
	Timeout Duration `toml:"timeout" yaml:"timeout" env:"TIMEOUT"`

	// Settings are sent in workspace/didChangeConfiguration and returned
	// for workspace/configuration requests.
	Settings map[string]any `toml:"settings" yaml:"settings"`
}

// Log configures the log output.
type Log struct {
	// Level is a zerolog level name.
	// Env: LSPBRIDGE_LOG_LEVEL
	Level string `toml:"level" yaml:"level" env:"LEVEL"`

	// File receives the log. Empty logs to stderr.
	// Env: LSPBRIDGE_LOG_FILE
	File string `toml:"file" yaml:"file" env:"FILE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sync: Sync{
			BufferEntered:     Duration(100 * time.Millisecond),
			TextChanged:       Duration(200 * time.Millisecond),
			TextChangedInsert: 0,
		},
		Rename: Rename{
			Timeout: Duration(10 * time.Second),
		},
		Server: Server{
			Timeout: Duration(30 * time.Second),
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Validate checks the configuration and joins every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Sync.BufferEntered < 0 {
		errs = append(errs, fmt.Errorf("%w: buffer_entered is negative", ErrInvalidSyncConfig))
	}
	if c.Sync.TextChanged < 0 {
		errs = append(errs, fmt.Errorf("%w: text_changed is negative", ErrInvalidSyncConfig))
	}
	if c.Sync.TextChangedInsert < 0 {
		errs = append(errs, fmt.Errorf("%w: text_changed_insert is negative", ErrInvalidSyncConfig))
	}
	if c.Rename.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive", ErrInvalidRenameConfig))
	}
	if strings.TrimSpace(c.Server.Command) == "" {
		errs = append(errs, fmt.Errorf("%w: command is required", ErrInvalidServerConfig))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: timeout is negative", ErrInvalidServerConfig))
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidLogConfig, err))
		}
	}

	return errors.Join(errs...)
}
