package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/neovim/go-client/nvim"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/lspbridge/internal/app"
	"github.com/dshills/lspbridge/internal/config"
	"github.com/dshills/lspbridge/internal/logging"
	"github.com/dshills/lspbridge/internal/neovim"
)

type serveFlags struct {
	configPath string
	workspace  string
	address    string
	command    string
	args       []string
	logLevel   string
	logFile    string
}

// overrides turns the flags into the highest-precedence config layer.
func (f *serveFlags) overrides() *config.Config {
	return &config.Config{
		Server: config.Server{
			Command: f.command,
			Args:    f.args,
		},
		Log: config.Log{
			Level: f.logLevel,
			File:  f.logFile,
		},
	}
}

func newServeCommand() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Attach to Neovim and run the bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", defaultConfigPath(), "Path to configuration file (.toml, .yaml)")
	f.StringVarP(&flags.workspace, "workspace", "w", "", "Workspace root (defaults to server.workdir or the current directory)")
	f.StringVarP(&flags.address, "address", "a", "", "Neovim listen address; empty uses stdin/stdout")
	f.StringVar(&flags.command, "server", "", "Language server command")
	f.StringSliceVar(&flags.args, "server-arg", nil, "Language server argument (repeatable)")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	f.StringVar(&flags.logFile, "log-file", "", "Log file; empty logs to stderr")
	return cmd
}

func serve(ctx context.Context, flags *serveFlags) error {
	build := func() (*config.Config, error) {
		return config.NewBuilder().
			WithFile(flags.configPath).
			WithEnv(nil).
			WithOverrides(flags.overrides()).
			Build()
	}

	cfg, err := build()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The logger itself passes everything; the global level filters.
	log, closer, err := logging.Open("lspbridge", cfg.Log.File, zerolog.TraceLevel)
	if err != nil {
		return err
	}
	defer closer.Close()
	zerolog.SetGlobalLevel(logging.ParseLevel(cfg.Log.Level))

	workspace, err := resolveWorkspace(flags.workspace, cfg.Server.WorkDir)
	if err != nil {
		return err
	}

	v, err := connect(flags.address, log)
	if err != nil {
		return fmt.Errorf("connect to neovim: %w", err)
	}

	bridge, err := app.Bootstrap(cfg, log, v, workspace)
	if err != nil {
		_ = v.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return bridge.Run(gctx)
	})

	if w := watchConfig(flags.configPath, build, log); w != nil {
		g.Go(func() error {
			err := w.Run(gctx)
			if errors.Is(err, config.ErrWatcherClosed) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func connect(address string, log *logging.Logger) (*nvim.Nvim, error) {
	logf := app.RPCLogf(log)
	if address != "" {
		return neovim.Dial(address, logf)
	}
	return nvim.New(os.Stdin, os.Stdout, os.Stdout, logf)
}

// watchConfig reloads the log level when the config file changes. It
// returns nil when there is nothing to watch.
func watchConfig(path string, build config.BuildFunc, log *logging.Logger) *config.Watcher {
	if path == "" {
		return nil
	}
	w, err := config.NewWatcher(path, build, func(cfg *config.Config) {
		level := logging.ParseLevel(cfg.Log.Level)
		zerolog.SetGlobalLevel(level)
		log.Info().Str("level", level.String()).Msg("log level applied")
	}, config.WithWatcherLogger(log))
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("config not watched")
		return nil
	}
	return w
}

func resolveWorkspace(flag, workDir string) (string, error) {
	ws := flag
	if ws == "" {
		ws = workDir
	}
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		ws = cwd
	}
	return filepath.Abs(ws)
}

// defaultConfigPath is $XDG_CONFIG_HOME/lspbridge/config.toml when it
// exists, else config.yaml when that exists, else empty.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		p := filepath.Join(dir, "lspbridge", name)
		if _, err := os.Stat(p); err == nil || !errors.Is(err, fs.ErrNotExist) {
			return p
		}
	}
	return ""
}
