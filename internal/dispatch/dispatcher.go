package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/lspbridge/internal/debounce"
	"github.com/dshills/lspbridge/internal/editor"
	"github.com/dshills/lspbridge/internal/logging"
	"github.com/dshills/lspbridge/internal/session"
)

// Windows are the debounce windows of the three entry points. A zero
// window runs the sync without waiting.
type Windows struct {
	BufferEntered     time.Duration
	TextChanged       time.Duration
	TextChangedInsert time.Duration
}

// DefaultWindows returns 100ms on buffer entry, 200ms for normal-mode
// changes and no delay in insert mode.
func DefaultWindows() Windows {
	return Windows{
		BufferEntered:     100 * time.Millisecond,
		TextChanged:       200 * time.Millisecond,
		TextChangedInsert: 0,
	}
}

// Dispatcher schedules syncs of the active buffer.
type Dispatcher struct {
	session *session.Session
	tracker *session.RevisionTracker
	editor  editor.Reader
	backend Syncer
	log     *logging.Logger

	windows Windows
	clock   debounce.Clock
	worker  *Worker

	entered *debounce.Debouncer
	changed *debounce.Debouncer
	insert  *debounce.Debouncer // nil when the insert window is zero
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWindows overrides the debounce windows.
func WithWindows(w Windows) Option {
	return func(d *Dispatcher) {
		d.windows = w
	}
}

// WithClock sets the clock driving the debouncers.
func WithClock(c debounce.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// New creates a dispatcher for s reading from ed and syncing to backend.
// Call Start before feeding it events.
func New(s *session.Session, ed editor.Reader, backend Syncer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		session: s,
		tracker: session.NewRevisionTracker(s),
		editor:  ed,
		backend: backend,
		log:     logging.Nop(),
		windows: DefaultWindows(),
		clock:   debounce.SystemClock,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent("dispatch")

	d.worker = NewWorker(WithPanicHandler(func(r any, stack []byte) {
		d.log.Error().Interface("panic", r).Bytes("stack", stack).Msg("sync task panicked")
	}))

	clock := debounce.WithClock(d.clock)
	d.entered = debounce.New(d.windows.BufferEntered, func() { d.post("buffer-entered", d.bufferEntered) }, clock)
	d.changed = debounce.New(d.windows.TextChanged, func() { d.post("text-changed", d.fullUpdate) }, clock)
	if d.windows.TextChangedInsert > 0 {
		d.insert = debounce.New(d.windows.TextChangedInsert, func() { d.post("text-changed-insert", d.partialUpdate) }, clock)
	}
	return d
}

// Start launches the serial worker.
func (d *Dispatcher) Start() error {
	return d.worker.Start()
}

// BufferEntered reports that the editor switched to a buffer. The session
// is reset and the whole buffer is sent once the window elapses.
func (d *Dispatcher) BufferEntered() {
	d.entered.Call()
}

// TextChanged reports a change made outside insert mode. Normal-mode
// commands can touch any line, so the whole buffer is sent.
func (d *Dispatcher) TextChanged() {
	d.changed.Call()
}

// TextChangedInsert reports a change made in insert mode.
func (d *Dispatcher) TextChangedInsert() {
	if d.insert != nil {
		d.insert.Call()
		return
	}
	d.post("text-changed-insert", d.partialUpdate)
}

// Close drops pending debounced calls and stops the worker once the
// queued syncs have run or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.entered.Cancel()
	d.changed.Cancel()
	if d.insert != nil {
		d.insert.Cancel()
	}
	err := d.worker.Stop(ctx)
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	return err
}

// Stats returns the worker statistics.
func (d *Dispatcher) Stats() WorkerStats {
	return d.worker.Stats()
}

func (d *Dispatcher) post(trigger string, task Task) {
	if err := d.worker.Enqueue(task); err != nil {
		d.log.Warn().Err(err).Str("trigger", trigger).Msg("sync dropped")
	}
}

func (d *Dispatcher) bufferEntered(ctx context.Context) {
	id, err := d.editor.Identity(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("read buffer identity")
		return
	}
	d.session.Reset(id)
	d.log.Debug().Str("file", id.File).Str("filetype", id.Filetype).Msg("buffer entered")
	d.attemptUpdate(ctx, false)
}

func (d *Dispatcher) fullUpdate(ctx context.Context) {
	d.attemptUpdate(ctx, false)
}

func (d *Dispatcher) partialUpdate(ctx context.Context) {
	d.attemptUpdate(ctx, true)
}

// attemptUpdate syncs the buffer if the gate admits it and the change
// counter moved. A partial sync the backend cannot absorb is retried as a
// full sync of the same revision.
func (d *Dispatcher) attemptUpdate(ctx context.Context, partial bool) {
	gate := d.session.Gate()
	if !gate.TryEnter() {
		d.log.Debug().Bool("partial", partial).Msg("gate closed, sync skipped")
		return
	}
	defer gate.Leave()

	tick, err := d.editor.ChangeTick(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("read change tick")
		return
	}
	if !d.tracker.ShouldSync(tick) {
		d.log.Debug().Int("tick", tick).Msg("revision already synced")
		return
	}

	if partial {
		err = d.sync(ctx, true)
		if errors.Is(err, session.ErrFullSyncRequired) {
			d.log.Debug().Int("tick", tick).Msg("backend asked for full sync")
			err = d.sync(ctx, false)
		}
	} else {
		err = d.sync(ctx, false)
	}
	if err != nil {
		d.log.Warn().Err(err).Bool("partial", partial).Int("tick", tick).Msg("sync failed")
	}
}

func (d *Dispatcher) sync(ctx context.Context, partial bool) error {
	snap, err := d.snapshot(ctx, partial)
	if err != nil {
		return err
	}
	if partial {
		return d.backend.PartialSync(ctx, snap)
	}
	return d.backend.FullSync(ctx, snap)
}

// snapshot reads the cursor, the line count and either the current line
// or every line.
func (d *Dispatcher) snapshot(ctx context.Context, partial bool) (session.Snapshot, error) {
	pos, err := d.editor.Cursor(ctx)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("read cursor: %w", err)
	}
	count, err := d.editor.LineCount(ctx)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("read line count: %w", err)
	}

	var buffer []string
	if partial {
		line, err := d.editor.CurrentLine(ctx)
		if err != nil {
			return session.Snapshot{}, fmt.Errorf("read current line: %w", err)
		}
		buffer = []string{line}
	} else {
		buffer, err = d.editor.Lines(ctx)
		if err != nil {
			return session.Snapshot{}, fmt.Errorf("read lines: %w", err)
		}
	}

	return d.session.Snapshot(pos.Line, pos.Column, count, buffer), nil
}
