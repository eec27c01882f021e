package rename

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/lspbridge/internal/editor"
	"github.com/dshills/lspbridge/internal/logging"
	"github.com/dshills/lspbridge/internal/patch"
	"github.com/dshills/lspbridge/internal/session"
)

// DefaultTimeout bounds the backend rename request.
const DefaultTimeout = 10 * time.Second

// Coordinator runs rename transactions against one session.
type Coordinator struct {
	session *session.Session
	editor  editor.Editor
	renamer Renamer
	applier *patch.Applier
	log     *logging.Logger
	timeout time.Duration

	state    atomic.Int32
	inFlight atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the bound on the backend request.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCoordinator creates a coordinator for s editing ed through renamer.
func NewCoordinator(s *session.Session, ed editor.Editor, renamer Renamer, opts ...Option) *Coordinator {
	c := &Coordinator{
		session: s,
		editor:  ed,
		renamer: renamer,
		applier: patch.NewApplier(ed),
		log:     logging.Nop(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("rename")
	return c
}

// State returns the current phase.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

// Rename runs one transaction for the symbol under the cursor. The captured
// text is sent to the backend exactly as typed. It returns ErrInFlight if
// another transaction is running, ErrEmptyCapture if the user typed nothing
// and ErrTimeout if the backend did not answer in time. Only a timeout is
// surfaced to the user; other failures are logged.
// Whatever the outcome the coordinator is back in Idle with the gate open.
func (c *Coordinator) Rename(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer c.inFlight.Store(false)
	defer c.setState(Idle)

	log := &logging.Logger{Logger: c.log.With().Str("txn", uuid.NewString()).Logger()}

	c.setState(CapturingPosition)
	pos, err := c.editor.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	file, err := c.activeFile(ctx)
	if err != nil {
		return err
	}
	log.Debug().Str("file", file).Int("line", pos.Line).Int("column", pos.Column).Msg("rename started")

	c.setState(AwaitingUserInput)
	name, err := c.capture(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("capture failed")
		return fmt.Errorf("capture replacement: %w", err)
	}
	if name == "" {
		log.Debug().Msg("empty replacement, nothing to do")
		return ErrEmptyCapture
	}

	c.setState(RequestingEdit)
	patches, err := c.request(ctx, file, pos, name)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			log.Warn().Dur("timeout", c.timeout).Str("name", name).Msg("rename timed out")
			c.warn(ctx, log, fmt.Sprintf("lspbridge: rename to %q timed out after %s", name, c.timeout))
			return err
		}
		log.Warn().Err(err).Str("name", name).Msg("rename request failed")
		return err
	}

	c.setState(ApplyingPatch)
	applied := 0
	for _, p := range patches {
		if !sameDocument(p.Document, file) {
			log.Debug().Str("document", p.Document).Int("ops", len(p.Operations)).Msg("dropping patch for another document")
			continue
		}
		if err := c.applier.Apply(ctx, p.Operations); err != nil {
			log.Warn().Err(err).Msg("apply patch")
			return fmt.Errorf("apply patch: %w", err)
		}
		applied += len(p.Operations)
	}
	log.Info().Str("name", name).Int("ops", applied).Int("documents", len(patches)).Msg("rename applied")
	return nil
}

// capture holds the gate closed while the user types, so no sync sees the
// transient edit.
func (c *Coordinator) capture(ctx context.Context) (string, error) {
	gate := c.session.Gate()
	if err := gate.Close(ctx); err != nil {
		return "", fmt.Errorf("close sync gate: %w", err)
	}
	defer func() {
		if err := gate.Open(); err != nil {
			c.log.Error().Err(err).Msg("reopen sync gate")
		}
	}()
	return c.editor.CaptureReplacement(ctx)
}

// request calls the backend with the timeout applied. A backend that
// ignores its context still times out; its late answer is discarded.
func (c *Coordinator) request(ctx context.Context, file string, pos editor.Position, name string) ([]patch.DocumentPatch, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		patches []patch.DocumentPatch
		err     error
	}
	done := make(chan result, 1)
	go func() {
		p, err := c.renamer.Rename(reqCtx, file, pos, name)
		done <- result{p, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, r.err)
		}
		return r.patches, r.err
	case <-reqCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	}
}

func (c *Coordinator) activeFile(ctx context.Context) (string, error) {
	if file := c.session.Identity().File; file != "" {
		return file, nil
	}
	id, err := c.editor.Identity(ctx)
	if err != nil {
		return "", fmt.Errorf("read identity: %w", err)
	}
	return id.File, nil
}

func (c *Coordinator) warn(ctx context.Context, log *logging.Logger, msg string) {
	if err := c.editor.Warn(ctx, msg); err != nil {
		log.Debug().Err(err).Msg("surface warning")
	}
}

// sameDocument treats a patch without a document as targeting the active
// buffer.
func sameDocument(doc, file string) bool {
	if doc == "" {
		return true
	}
	return filepath.Clean(doc) == filepath.Clean(file)
}
