package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_DefaultsOnly(t *testing.T) {
	cfg, err := NewBuilderWithLoader(NewLoaderWithFS(memFS{})).
		WithEnv(map[string]string{}).
		Build()

	require.Error(t, err, "no server command configured")
	assert.ErrorIs(t, err, ErrInvalidServerConfig)
	assert.Equal(t, Default(), cfg)
}

func TestBuilder_Precedence(t *testing.T) {
	files := memFS{"cfg.toml": tomlConfig}
	environ := map[string]string{
		"LSPBRIDGE_SYNC_TEXT_CHANGED": "400ms",
		"LSPBRIDGE_SERVER_COMMAND":    "gopls-env",
		"LSPBRIDGE_LOG_LEVEL":         "warn",
	}
	flags := &Config{
		Server: Server{Command: "gopls-flag"},
	}

	cfg, err := NewBuilderWithLoader(NewLoaderWithFS(files)).
		WithFile("cfg.toml").
		WithEnv(environ).
		WithOverrides(flags).
		Build()
	require.NoError(t, err)

	// flags beat env
	assert.Equal(t, "gopls-flag", cfg.Server.Command)
	// env beats file
	assert.Equal(t, 400*time.Millisecond, cfg.Sync.TextChanged.Std())
	assert.Equal(t, "warn", cfg.Log.Level)
	// file beats defaults
	assert.Equal(t, 50*time.Millisecond, cfg.Sync.BufferEntered.Std())
	assert.Equal(t, 3*time.Second, cfg.Rename.Timeout.Std())
	assert.Equal(t, []string{"serve", "-rpc.trace"}, cfg.Server.Args)
	// defaults survive where nobody set a value
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout.Std())
}

func TestBuilder_EnvParsesCollections(t *testing.T) {
	environ := map[string]string{
		"LSPBRIDGE_SERVER_COMMAND":      "pyright-langserver",
		"LSPBRIDGE_SERVER_ARGS":         "--stdio,--verbose",
		"LSPBRIDGE_SERVER_LANGUAGE_IDS": ".py:python,.pyi:python",
		"LSPBRIDGE_RENAME_TIMEOUT":      "2s",
	}

	cfg, err := NewBuilderWithLoader(NewLoaderWithFS(memFS{})).WithEnv(environ).Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"--stdio", "--verbose"}, cfg.Server.Args)
	assert.Equal(t, map[string]string{".py": "python", ".pyi": "python"}, cfg.Server.LanguageIDs)
	assert.Equal(t, 2*time.Second, cfg.Rename.Timeout.Std())
}

func TestBuilder_BadEnvValue(t *testing.T) {
	_, err := NewBuilderWithLoader(NewLoaderWithFS(memFS{})).
		WithEnv(map[string]string{"LSPBRIDGE_RENAME_TIMEOUT": "whenever"}).
		Build()
	assert.Error(t, err)
}

func TestBuilder_FileErrorsAreReported(t *testing.T) {
	cfg, err := NewBuilderWithLoader(NewLoaderWithFS(memFS{"cfg.toml": "[[["})).
		WithFile("cfg.toml").
		WithOverrides(&Config{Server: Server{Command: "gopls"}}).
		Build()

	assert.Nil(t, cfg)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestBuilder_EmptyAndMissingFilesAreSkipped(t *testing.T) {
	cfg, err := NewBuilderWithLoader(NewLoaderWithFS(memFS{})).
		WithFile("").
		WithFile("missing.yaml").
		WithOverrides(&Config{Server: Server{Command: "gopls"}}).
		WithOverrides(nil).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "gopls", cfg.Server.Command)
}

func TestBuilder_LanguageIDsMergeAcrossLayers(t *testing.T) {
	files := memFS{"cfg.yaml": "server:\n  command: x\n  language_ids:\n    .go: go\n    .mod: go.mod\n"}
	flags := &Config{Server: Server{LanguageIDs: map[string]string{".mod": "gomod"}}}

	cfg, err := NewBuilderWithLoader(NewLoaderWithFS(files)).
		WithFile("cfg.yaml").
		WithOverrides(flags).
		Build()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{".go": "go", ".mod": "gomod"}, cfg.Server.LanguageIDs)
}
