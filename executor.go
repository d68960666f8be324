package remotedisk

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwantia/remotedisk/data"
	"github.com/mwantia/remotedisk/log"
)

// Task is a unit of work scheduled on the async executor.
type Task func() error

// Future is the completion handle of a scheduled task. It is fulfilled when
// the task finishes, carrying the task's failure if any.
type Future struct {
	done chan struct{}
	err  error
}

// Wait blocks until the task completed or ctx is done, returning the task's
// failure or the context error.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed once the task completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task's failure. Only valid after Done is closed.
func (f *Future) Err() error {
	return f.err
}

type execEntry struct {
	task   Task
	future *Future
}

// AsyncExecutor runs tasks on a fixed-size worker pool. Tasks are dispatched
// in submission order; a task whose queue slot cannot be claimed fails
// loudly with data.ErrExecutorQueueFull instead of being dropped.
//
// A failed task is logged at the point of failure so fire-and-forget callers
// still get a diagnostic trail, and the same failure is delivered through
// the returned future.
type AsyncExecutor struct {
	name string
	log  *log.Logger

	tasks chan execEntry
	wg    sync.WaitGroup

	mu      sync.Mutex
	quits   []chan struct{}
	stopped bool
}

func NewAsyncExecutor(name string, threads, queueSize int, logger *log.Logger) *AsyncExecutor {
	if threads < 1 {
		threads = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	e := &AsyncExecutor{
		name:  name,
		log:   logger,
		tasks: make(chan execEntry, queueSize),
	}

	e.mu.Lock()
	for i := 0; i < threads; i++ {
		e.spawnWorker()
	}
	e.mu.Unlock()

	return e
}

// Execute schedules task on the pool and returns its completion handle.
func (e *AsyncExecutor) Execute(task Task) (*Future, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil, fmt.Errorf("%w: %s", data.ErrExecutorStopped, e.name)
	}

	entry := execEntry{
		task:   task,
		future: &Future{done: make(chan struct{})},
	}

	// Non-blocking enqueue under the lock; Shutdown closes the channel
	// under the same lock.
	select {
	case e.tasks <- entry:
		return entry.future, nil
	default:
		return nil, fmt.Errorf("%w: %s", data.ErrExecutorQueueFull, e.name)
	}
}

// SetMaxThreads resizes the worker pool at runtime. Shrinking stops excess
// workers once they finish their current task; queued tasks stay queued for
// the remaining workers.
func (e *AsyncExecutor) SetMaxThreads(threads int) {
	if threads < 1 {
		threads = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	for len(e.quits) < threads {
		e.spawnWorker()
	}

	for len(e.quits) > threads {
		last := len(e.quits) - 1
		close(e.quits[last])
		e.quits = e.quits[:last]
	}
}

// Threads returns the current worker count.
func (e *AsyncExecutor) Threads() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.quits)
}

// Shutdown stops accepting tasks, runs everything already queued and waits
// for the workers to drain, or until ctx is done.
func (e *AsyncExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	close(e.tasks)
	e.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawnWorker must be called with the lock held.
func (e *AsyncExecutor) spawnWorker() {
	quit := make(chan struct{})
	e.quits = append(e.quits, quit)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		for {
			select {
			case <-quit:
				return
			case entry, ok := <-e.tasks:
				if !ok {
					return
				}
				e.run(entry)
			}
		}
	}()
}

func (e *AsyncExecutor) run(entry execEntry) {
	if err := entry.task(); err != nil {
		if e.log != nil {
			e.log.Error("Failed to run async task: %v", err)
		}
		entry.future.err = err
	}

	close(entry.future.done)
}
