package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloads struct {
	mu      sync.Mutex
	configs []*Config
	errs    []error
}

func (r *reloads) changed(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
}

func (r *reloads) failed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *reloads) count() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs), len(r.errs)
}

func (r *reloads) last() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[len(r.configs)-1]
}

func startWatcher(t *testing.T, path string, build BuildFunc, r *reloads) *Watcher {
	t.Helper()
	w, err := NewWatcher(path, build, r.changed,
		WithReloadDelay(20*time.Millisecond),
		WithErrorHandler(r.failed),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lspbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644))

	build := func() (*Config, error) {
		return NewBuilder().WithFile(path).WithOverrides(&Config{Server: Server{Command: "x"}}).Build()
	}
	r := &reloads{}
	w := startWatcher(t, path, build, r)
	assert.Equal(t, path, w.Path())

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644))

	require.Eventually(t, func() bool {
		n, _ := r.count()
		return n > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "debug", r.last().Log.Level)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lspbridge.yaml")

	var builds int
	var mu sync.Mutex
	build := func() (*Config, error) {
		mu.Lock()
		builds++
		mu.Unlock()
		return Default(), nil
	}
	r := &reloads{}
	startWatcher(t, path, build, r)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, builds)
}

func TestWatcher_BuildErrorKeepsWatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lspbridge.toml")

	fail := errors.New("broken")
	var mu sync.Mutex
	calls := 0
	build := func() (*Config, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, fail
		}
		return Default(), nil
	}
	r := &reloads{}
	startWatcher(t, path, build, r)

	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	require.Eventually(t, func() bool {
		_, n := r.count()
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	require.Eventually(t, func() bool {
		n, _ := r.count()
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "cfg.toml"),
		func() (*Config, error) { return Default(), nil }, func(*Config) {})
	assert.Error(t, err)
}

func TestWatcher_CloseEndsRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	w, err := NewWatcher(path, func() (*Config, error) { return Default(), nil }, func(*Config) {})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	w.Close()
	w.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrWatcherClosed)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}
