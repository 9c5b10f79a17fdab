package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smallplates/internal/logger"
)

// Task is a unit of best-effort background work.
type Task func(ctx context.Context) error

// TaskRunner accepts best-effort work. Failures are never reported back to
// the caller that enqueued the task.
type TaskRunner interface {
	Enqueue(name string, fn Task) bool
}

type queuedTask struct {
	name       string
	fn         Task
	enqueuedAt time.Time
}

// TaskQueue runs tasks on a fixed pool of workers fed by a bounded buffer.
// Errors and panics are logged only.
type TaskQueue struct {
	tasks   chan queuedTask
	log     *slog.Logger
	timeout time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewTaskQueue starts workers immediately. taskTimeout bounds each task;
// zero means two minutes.
func NewTaskQueue(workers, size int, taskTimeout time.Duration, log *slog.Logger) *TaskQueue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &TaskQueue{
		tasks:   make(chan queuedTask, size),
		log:     logger.OrDefault(log, "task_queue"),
		timeout: taskTimeout,
		baseCtx: ctx,
		cancel:  cancel,
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue returns false when the queue is full or closed; the task is dropped.
func (q *TaskQueue) Enqueue(name string, fn Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.log.Warn("task dropped: queue closed", "task", name)
		return false
	}

	select {
	case q.tasks <- queuedTask{name: name, fn: fn, enqueuedAt: time.Now()}:
		return true
	default:
		q.log.Warn("task dropped: queue full", "task", name)
		return false
	}
}

// Close stops intake and waits for queued tasks to finish. If ctx ends first,
// running tasks are cancelled and ctx's error is returned.
func (q *TaskQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *TaskQueue) run(t queuedTask) {
	ctx, cancel := context.WithTimeout(q.baseCtx, q.timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, t.fn)
	attrs := []any{
		"task", t.name,
		"waited", start.Sub(t.enqueuedAt).String(),
		"took", time.Since(start).String(),
	}
	if err != nil {
		q.log.Error("background task failed", append(attrs, "error", err)...)
		return
	}
	q.log.Debug("background task done", attrs...)
}

var errTaskPanicked = errors.New("task panicked")

func safeRun(ctx context.Context, fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errTaskPanicked, r)
		}
	}()
	return fn(ctx)
}

// inlineRunner runs tasks synchronously on the caller's goroutine.
type inlineRunner struct {
	log *slog.Logger
}

// NewInlineRunner is a TaskRunner for CLI tools and tests.
func NewInlineRunner(log *slog.Logger) TaskRunner {
	return inlineRunner{log: logger.OrDefault(log, "inline_runner")}
}

func (r inlineRunner) Enqueue(name string, fn Task) bool {
	if err := safeRun(context.Background(), fn); err != nil {
		r.log.Error("background task failed", "task", name, "error", err)
	}
	return true
}
