package app

import (
	"strings"

	"github.com/neovim/go-client/nvim"

	"github.com/dshills/lspbridge/internal/config"
	"github.com/dshills/lspbridge/internal/logging"
	"github.com/dshills/lspbridge/internal/lsp"
	"github.com/dshills/lspbridge/internal/neovim"
)

// Bootstrap builds a Bridge that talks to Neovim over v and to the
// language server described by cfg. The server is started by Run.
func Bootstrap(cfg *config.Config, log *logging.Logger, v *nvim.Nvim, workspace string) (*Bridge, error) {
	if log == nil {
		log = logging.Nop()
	}
	server := lsp.NewServer(ServerConfig(cfg.Server, workspace), log)
	backend := lsp.NewBackend(server, cfg.Server.LanguageIDs, log)

	return New(Options{
		Config:    cfg,
		Logger:    log,
		Host:      neovim.New(v, log),
		Conn:      v,
		Server:    server,
		Backend:   backend,
		Workspace: workspace,
	})
}

// ServerConfig converts the server section of the configuration. An empty
// work directory falls back to the workspace.
func ServerConfig(c config.Server, workspace string) lsp.ServerConfig {
	var env map[string]string
	for _, kv := range c.Env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if env == nil {
			env = make(map[string]string, len(c.Env))
		}
		env[k] = v
	}

	workDir := c.WorkDir
	if workDir == "" {
		workDir = workspace
	}

	sc := lsp.ServerConfig{
		Command: c.Command,
		Args:    c.Args,
		Env:     env,
		WorkDir: workDir,
		Timeout: c.Timeout.Std(),
	}
	if len(c.Settings) > 0 {
		sc.Settings = c.Settings
	}
	return sc
}

// RPCLogf adapts log for the Neovim client's printf-style logging.
func RPCLogf(log *logging.Logger) func(format string, args ...any) {
	return func(format string, args ...any) {
		log.Debug().Str("component", "rpc").Msgf(format, args...)
	}
}
