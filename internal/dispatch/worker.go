package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work run on the worker goroutine.
type Task func(ctx context.Context)

// PanicHandler receives panics recovered from tasks.
type PanicHandler func(recovered any, stack []byte)

// Worker runs queued tasks one at a time, in order, on a single goroutine.
type Worker struct {
	queueSize    int
	panicHandler PanicHandler

	mu      sync.Mutex // protects queue creation/destruction
	queue   chan Task
	running atomic.Bool
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	enqueued    atomic.Uint64
	processed   atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithQueueSize sets the task queue size.
func WithQueueSize(size int) WorkerOption {
	return func(w *Worker) {
		if size > 0 {
			w.queueSize = size
		}
	}
}

// WithPanicHandler sets the handler for panics recovered from tasks.
func WithPanicHandler(h PanicHandler) WorkerOption {
	return func(w *Worker) {
		w.panicHandler = h
	}
}

// NewWorker creates a stopped worker.
func NewWorker(opts ...WorkerOption) *Worker {
	w := &Worker{queueSize: 64}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the worker goroutine.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return ErrAlreadyRunning
	}

	w.queue = make(chan Task, w.queueSize)
	w.done = make(chan struct{})
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.running.Store(true)

	go w.loop(w.queue, w.done)
	return nil
}

// Stop cancels the context handed to tasks, lets the worker drain what is
// queued and waits for it until ctx expires.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running.Load() {
		w.mu.Unlock()
		return ErrNotRunning
	}
	w.running.Store(false)
	w.cancel()
	close(w.queue)
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue adds a task without blocking.
func (w *Worker) Enqueue(task Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return ErrNotRunning
	}

	select {
	case w.queue <- task:
		w.enqueued.Add(1)
		return nil
	default:
		w.dropped.Add(1)
		return ErrQueueFull
	}
}

func (w *Worker) loop(queue <-chan Task, done chan<- struct{}) {
	defer close(done)
	for task := range queue {
		w.run(task)
	}
}

// run executes one task, recovering any panic so the loop survives.
func (w *Worker) run(task Task) {
	w.processed.Add(1)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.panicked.Add(1)
			if w.panicHandler != nil {
				w.panicHandler(r, debug.Stack())
			}
		}
		w.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	task(w.ctx)
}

// IsRunning returns true if the worker is running.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// Stats returns worker statistics.
func (w *Worker) Stats() WorkerStats {
	processed := w.processed.Load()
	totalNs := w.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return WorkerStats{
		Enqueued:      w.enqueued.Load(),
		Processed:     processed,
		Panicked:      w.panicked.Load(),
		Dropped:       w.dropped.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// WorkerStats contains statistics for a worker.
type WorkerStats struct {
	Enqueued      uint64
	Processed     uint64
	Panicked      uint64
	Dropped       uint64
	TotalDuration time.Duration
	AvgDuration   time.Duration
}

// String renders the stats for logs.
func (s WorkerStats) String() string {
	return fmt.Sprintf("enqueued=%d processed=%d panicked=%d dropped=%d avg=%s",
		s.Enqueued, s.Processed, s.Panicked, s.Dropped, s.AvgDuration)
}
