package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/lspbridge/internal/debounce"
	"github.com/dshills/lspbridge/internal/logging"
)

// ErrWatcherClosed is returned by Run after Close.
var ErrWatcherClosed = errors.New("watcher closed")

// BuildFunc rebuilds the full configuration after the file changed.
type BuildFunc func() (*Config, error)

// Watcher reloads a configuration file when it changes on disk.
//
// The parent directory is watched rather than the file so that editors
// which save by renaming a temporary file are still seen.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	build    BuildFunc
	onChange func(*Config)
	onError  func(error)
	delay    time.Duration
	log      *logging.Logger

	debouncer *debounce.Debouncer
	closeOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithReloadDelay sets the quiet period before a reload. Bursts of writes
// produce a single reload.
func WithReloadDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.delay = d
		}
	}
}

// WithErrorHandler receives build and watch errors. The previous
// configuration stays in effect.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(log *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWatcher watches path and calls onChange with every successfully
// rebuilt configuration.
func NewWatcher(path string, build BuildFunc, onChange func(*Config), opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		build:    build,
		onChange: onChange,
		onError:  func(error) {},
		delay:    100 * time.Millisecond,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.fsw = fsw
	w.debouncer = debounce.New(w.delay, w.reload)

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run processes file events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return ErrWatcherClosed
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.log.Warn().Err(err).Msg("config watch error")
			w.onError(err)
		}
	}
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.debouncer.Cancel()
		_ = w.fsw.Close()
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("config file changed")
	w.debouncer.Call()
}

func (w *Watcher) reload() {
	cfg, err := w.build()
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload failed")
		w.onError(err)
		return
	}
	w.log.Info().Str("path", w.path).Msg("config reloaded")
	w.onChange(cfg)
}
