// Package taskrunner schedules units of asynchronous work from the host loop
// onto background goroutines and reports their outcome through a completion
// callback.
//
// Schedule never blocks the caller. The returned Task can be cancelled and
// inspected at any time; its completion callback runs on the goroutine that
// executed the work, so callers that own host loop state must post from it.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrRunnerClosed is the outcome of work scheduled after Close.
	ErrRunnerClosed = errors.New("task runner closed")
	// ErrPending is returned by Task.Result while the work is still running.
	ErrPending = errors.New("task still pending")
)

// Runner owns the execution domain tasks run in. Cancelling the parent context
// given to New cancels every task scheduled on the runner.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a runner whose tasks derive their context from parent.
func New(parent context.Context) *Runner {
	ctx, cancel := context.WithCancel(parent)
	return &Runner{ctx: ctx, cancel: cancel}
}

// Close cancels all running tasks and waits for them and their callbacks to return.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// Task is the handle of one scheduled unit of work.
type Task[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	finished  bool
	cancelled bool
	result    T
	err       error
}

// Schedule starts work on its own goroutine and returns its handle immediately.
// If onDone is not nil it is called exactly once with the task after work returns,
// whether it succeeded, failed or was cancelled.
func Schedule[T any](r *Runner, work func(ctx context.Context) (T, error), onDone func(*Task[T])) *Task[T] {
	ctx, cancel := context.WithCancel(r.ctx)
	t := &Task[T]{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		go func() {
			var zero T
			t.complete(zero, ErrRunnerClosed)
			if onDone != nil {
				onDone(t)
			}
		}()
		return t
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		result, err := run(ctx, work)
		t.complete(result, err)
		if onDone != nil {
			onDone(t)
		}
	}()
	return t
}

func run[T any](ctx context.Context, work func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Task panicked", "panic", p)
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return work(ctx)
}

func (t *Task[T]) complete(result T, err error) {
	t.mu.Lock()
	t.result = result
	t.err = err
	t.finished = true
	// The work either honoured the cancellation or swallowed it while cleaning up.
	t.cancelled = t.ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled))
	t.mu.Unlock()

	t.cancel()
	close(t.done)
}

// Cancel requests cancellation of the work. It does not wait for the work to return.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Done is closed once the work has returned.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Finished reports whether the work has returned.
func (t *Task[T]) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Cancelled reports whether the task ended because it was cancelled.
func (t *Task[T]) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Result returns the outcome of the work, or ErrPending while it is running.
func (t *Task[T]) Result() (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.finished {
		var zero T
		return zero, ErrPending
	}
	return t.result, t.err
}

// Err returns the error the work returned, nil while it is running.
func (t *Task[T]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
