package pool

import (
	"errors"
	"fmt"
)

// ErrTerminated rejects tasks that were queued or in flight when the pool was
// torn down, and submissions made after teardown. Callers never hang on a
// terminated pool.
var ErrTerminated = errors.New("pool terminated")

// InitError aborts pool construction when a worker fails its readiness
// handshake. Construction is all-or-nothing: a partial pool is never left
// running.
type InitError struct {
	Worker int
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("worker %d failed to initialize: %v", e.Worker, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// TaskError wraps an engine failure for one specific task. It settles only
// that task's future; the worker that reported it stays in rotation.
type TaskError struct {
	TaskID uint64
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
