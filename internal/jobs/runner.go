package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is the handle of one background unit of work.
type Task struct {
	ID   string
	done chan struct{}
	err  error
}

// Done is closed when the task has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task outcome. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

// Runner starts one goroutine per job and keeps a handle to each in-flight
// task so callers can wait on them.
type Runner struct {
	group errgroup.Group

	mu    sync.Mutex
	tasks map[string]*Task
}

func NewRunner() *Runner {
	return &Runner{tasks: make(map[string]*Task)}
}

// Start runs fn in the background. Panics are recovered and reported as the
// task error. ctx is passed through unchanged; callers detach it from request
// lifetimes themselves.
func (r *Runner) Start(ctx context.Context, id string, fn func(context.Context) error) *Task {
	task := &Task{ID: id, done: make(chan struct{})}
	r.mu.Lock()
	r.tasks[id] = task
	r.mu.Unlock()

	r.group.Go(func() error {
		defer r.forget(task)
		defer close(task.done)
		defer func() {
			if p := recover(); p != nil {
				task.err = fmt.Errorf("panic in generation %s: %v\n%s", id, p, debug.Stack())
			}
		}()
		task.err = fn(ctx)
		return nil
	})
	return task
}

func (r *Runner) forget(task *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks[task.ID] == task {
		delete(r.tasks, task.ID)
	}
}

// Task returns the handle for id while it is in flight.
func (r *Runner) Task(id string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Wait blocks until every started task has returned or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = r.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
