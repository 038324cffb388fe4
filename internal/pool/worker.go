package pool

import (
	"fmt"
	"log/slog"
)

// worker is one execution context. It owns a private executor, processes one
// task at a time (the scheduler never hands it a second task while one is
// outstanding), and communicates with the scheduler only through channels.
type worker struct {
	id    int
	exec  Executor
	tasks <-chan *Task
	done  chan<- completion
	quit  <-chan struct{}
	log   *slog.Logger
}

func (w *worker) run() {
	w.log.Debug("worker started", "worker", w.id)
	defer w.log.Debug("worker stopped", "worker", w.id)

	for {
		select {
		case t, ok := <-w.tasks:
			if !ok {
				return
			}

			data, err := w.apply(t)

			// Hand the result buffer over to the scheduler without copying;
			// it is not touched here again. If the pool is being torn down
			// the completion has no receiver, so bail out on quit instead.
			select {
			case w.done <- completion{worker: w.id, data: data, err: err}:
			case <-w.quit:
				return
			}
		case <-w.quit:
			return
		}
	}
}

// apply invokes the engine and converts any panic into an error so a
// misbehaving input can never take the worker out of rotation.
func (w *worker) apply(t *Task) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return w.exec.Apply(t.Input, t.Config)
}
