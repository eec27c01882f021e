package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/lspbridge/internal/config"
	"github.com/dshills/lspbridge/internal/debounce"
	"github.com/dshills/lspbridge/internal/dispatch"
	"github.com/dshills/lspbridge/internal/editor"
	"github.com/dshills/lspbridge/internal/logging"
	"github.com/dshills/lspbridge/internal/lsp"
	"github.com/dshills/lspbridge/internal/neovim"
	"github.com/dshills/lspbridge/internal/rename"
	"github.com/dshills/lspbridge/internal/session"
)

// shutdownTimeout bounds the teardown after Run's context ends.
const shutdownTimeout = 5 * time.Second

// Host is the editor side of the bridge.
type Host interface {
	editor.Editor
	Install(h neovim.Handlers) error
	DefineAutocmds() error
	RemoveAutocmds() error
}

// Conn is the editor RPC connection. Serve blocks until the connection
// ends; Close ends it.
type Conn interface {
	Serve() error
	Close() error
}

// LanguageServer is the lifecycle of the language server.
type LanguageServer interface {
	Start(ctx context.Context, workspaceFolders []lsp.WorkspaceFolder) error
	Shutdown(ctx context.Context) error
	ExitChannel() <-chan error
}

// Backend syncs buffers to the language server and resolves renames.
type Backend interface {
	dispatch.Syncer
	rename.Renamer
}

// Options holds the components of a Bridge.
type Options struct {
	Config    *config.Config
	Logger    *logging.Logger
	Host      Host
	Conn      Conn
	Server    LanguageServer
	Backend   Backend
	Workspace string

	// Clock drives the sync debouncers. Defaults to the system clock.
	Clock debounce.Clock
}

// Bridge connects an editor to a language server.
type Bridge struct {
	cfg       *config.Config
	log       *logging.Logger
	host      Host
	conn      Conn
	server    LanguageServer
	workspace string

	session     *session.Session
	dispatcher  *dispatch.Dispatcher
	coordinator *rename.Coordinator

	running atomic.Bool

	mu       sync.Mutex
	runCtx   context.Context
	stopping bool
	renames  sync.WaitGroup
}

// New assembles a bridge from opts.
func New(opts Options) (*Bridge, error) {
	switch {
	case opts.Host == nil:
		return nil, fmt.Errorf("%w: host", ErrComponentNotAvailable)
	case opts.Conn == nil:
		return nil, fmt.Errorf("%w: editor connection", ErrComponentNotAvailable)
	case opts.Server == nil:
		return nil, fmt.Errorf("%w: language server", ErrComponentNotAvailable)
	case opts.Backend == nil:
		return nil, fmt.Errorf("%w: backend", ErrComponentNotAvailable)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	s := session.New()
	b := &Bridge{
		cfg:       cfg,
		log:       log.WithComponent("bridge"),
		host:      opts.Host,
		conn:      opts.Conn,
		server:    opts.Server,
		workspace: opts.Workspace,
		session:   s,
	}

	b.dispatcher = dispatch.New(s, opts.Host, opts.Backend,
		dispatch.WithWindows(Windows(cfg.Sync)),
		dispatch.WithClock(opts.Clock),
		dispatch.WithLogger(log),
	)
	b.coordinator = rename.NewCoordinator(s, opts.Host, opts.Backend,
		rename.WithTimeout(cfg.Rename.Timeout.Std()),
		rename.WithLogger(log),
	)
	return b, nil
}

// Windows converts the sync configuration to dispatcher windows.
func Windows(c config.Sync) dispatch.Windows {
	return dispatch.Windows{
		BufferEntered:     c.BufferEntered.Std(),
		TextChanged:       c.TextChanged.Std(),
		TextChangedInsert: c.TextChangedInsert.Std(),
	}
}

// Session returns the shared session state.
func (b *Bridge) Session() *session.Session {
	return b.session
}

// RenameState reports the rename coordinator's current state.
func (b *Bridge) RenameState() rename.State {
	return b.coordinator.State()
}

// Stats returns the sync worker statistics.
func (b *Bridge) Stats() dispatch.WorkerStats {
	return b.dispatcher.Stats()
}

// Run starts the language server, serves the editor connection and blocks
// until one of them ends or ctx is cancelled. An editor disconnect or a
// cancelled ctx returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := b.server.Start(ctx, b.workspaceFolders()); err != nil {
		_ = b.conn.Close()
		return fmt.Errorf("start language server: %w", err)
	}
	if err := b.dispatcher.Start(); err != nil {
		b.shutdownServer()
		_ = b.conn.Close()
		return err
	}
	if err := b.host.Install(neovim.Handlers{
		BufferEntered:     b.dispatcher.BufferEntered,
		TextChanged:       b.dispatcher.TextChanged,
		TextChangedInsert: b.dispatcher.TextChangedInsert,
		Rename:            b.startRename,
	}); err != nil {
		b.teardown()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	b.mu.Lock()
	b.runCtx = gctx
	b.mu.Unlock()

	g.Go(func() error {
		err := b.conn.Serve()
		if gctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("serve editor: %w", err)
		}
		return errEditorClosed
	})

	g.Go(func() error {
		if err := b.host.DefineAutocmds(); err != nil {
			return err
		}
		b.log.Info().Str("workspace", b.workspace).Msg("bridge ready")
		b.dispatcher.BufferEntered()
		return nil
	})

	g.Go(func() error {
		select {
		case err := <-b.server.ExitChannel():
			return fmt.Errorf("%w: %v", ErrServerExited, err)
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		b.teardown()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, errEditorClosed) {
		b.log.Info().Msg("editor disconnected")
		return nil
	}
	return err
}

// teardown stops renames, the dispatcher, the autocommands, the language
// server and the editor connection, in that order.
func (b *Bridge) teardown() {
	b.mu.Lock()
	b.stopping = true
	b.mu.Unlock()
	b.renames.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := b.dispatcher.Close(ctx); err != nil {
		b.log.Warn().Err(err).Msg("dispatcher did not drain")
	}
	if err := b.host.RemoveAutocmds(); err != nil {
		b.log.Debug().Err(err).Msg("remove autocommands")
	}
	b.shutdownServer()
	if err := b.conn.Close(); err != nil {
		b.log.Debug().Err(err).Msg("close editor connection")
	}
}

func (b *Bridge) shutdownServer() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.server.Shutdown(ctx); err != nil {
		b.log.Warn().Err(err).Msg("language server shutdown")
	}
}

// startRename runs a rename transaction in its own goroutine so the RPC
// notification handler returns at once.
func (b *Bridge) startRename() {
	b.mu.Lock()
	if b.stopping || b.runCtx == nil {
		b.mu.Unlock()
		return
	}
	ctx := b.runCtx
	b.renames.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.renames.Done()
		err := b.coordinator.Rename(ctx)
		switch {
		case err == nil:
		case errors.Is(err, rename.ErrInFlight):
			b.log.Debug().Msg("rename ignored, another one is running")
		case errors.Is(err, rename.ErrEmptyCapture), errors.Is(err, context.Canceled):
		default:
			b.log.Debug().Err(err).Msg("rename ended with error")
		}
	}()
}

func (b *Bridge) workspaceFolders() []lsp.WorkspaceFolder {
	if b.workspace == "" {
		return nil
	}
	return []lsp.WorkspaceFolder{{
		URI:  lsp.FilePathToURI(b.workspace),
		Name: filepath.Base(b.workspace),
	}}
}
