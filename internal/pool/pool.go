package pool

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ejneale/inkpress/internal/watermark"
)

// Executor is the engine instance a worker owns. Implementations must be
// callable without blocking I/O; they are invoked from a dedicated goroutine.
type Executor interface {
	// Warmup performs one-time initialization before the worker accepts tasks.
	Warmup() error

	// Apply transforms input according to cfg and returns a freshly allocated
	// result buffer. Ownership of the returned buffer transfers to the caller.
	Apply(input []byte, cfg watermark.Config) ([]byte, error)
}

// Factory builds one executor per worker, so each worker owns a fully
// isolated engine instance and no state is shared between workers.
type Factory func() (Executor, error)

// Status is a point-in-time snapshot of pool occupancy. It is consistent
// because the scheduler goroutine serves it between state mutations.
type Status struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Queued int `json:"queued"`
}

// completion is the message a worker sends back to the scheduler after
// finishing a task. data is the engine's result buffer, moved here without
// copying; the worker does not retain it.
type completion struct {
	worker int
	data   []byte
	err    error
}

// slot pairs one worker with its scheduler-side bookkeeping. busy and current
// are owned by the scheduler goroutine; tasks is the hand-off channel to the
// worker. current is non-nil exactly when busy is true.
type slot struct {
	tasks   chan *Task
	busy    bool
	current *Task
}

// Pool schedules tasks across a fixed set of workers, strictly FIFO. The slot
// table, queue, and active count are mutated only by the scheduler goroutine.
type Pool struct {
	slots  []slot
	queue  []*Task
	active int

	submitCh chan *Task
	doneCh   chan completion
	statusCh chan chan Status
	quitCh   chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	nextID atomic.Uint64
	logger *slog.Logger
}

// readiness is one worker's handshake result during construction.
type readiness struct {
	worker int
	err    error
}

// New constructs a pool of n workers. Each worker builds its own executor via
// factory and warms it up before signalling ready; if any worker fails the
// handshake, construction stops every already-started worker and returns an
// InitError. There is never a partially initialized pool.
func New(n int, factory Factory, logger *slog.Logger) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", n)
	}

	p := &Pool{
		slots:    make([]slot, n),
		submitCh: make(chan *Task),
		doneCh:   make(chan completion),
		statusCh: make(chan chan Status),
		quitCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logger,
	}

	readyCh := make(chan readiness, n)
	for i := 0; i < n; i++ {
		// Capacity 1 lets the scheduler hand a task to an idle worker
		// without ever blocking its own event loop.
		p.slots[i].tasks = make(chan *Task, 1)

		go func(id int) {
			exec, err := factory()
			if err == nil {
				err = exec.Warmup()
			}
			readyCh <- readiness{worker: id, err: err}
			if err != nil {
				return
			}

			w := &worker{
				id:    id,
				exec:  exec,
				tasks: p.slots[id].tasks,
				done:  p.doneCh,
				quit:  p.quitCh,
				log:   logger,
			}
			w.run()
		}(i)
	}

	for i := 0; i < n; i++ {
		r := <-readyCh
		if r.err != nil {
			close(p.quitCh)
			close(p.stopped)
			return nil, &InitError{Worker: r.worker, Err: r.err}
		}
	}

	logger.Info("pool ready", "workers", n)
	go p.run()
	return p, nil
}

// Submit enqueues a standalone task and returns its future immediately. It
// never waits for capacity; at most it hands the task to the scheduler. After
// Terminate the returned future is already rejected with ErrTerminated.
func (p *Pool) Submit(input []byte, cfg watermark.Config) *Future {
	return p.submit(input, cfg, Whole())
}

// SubmitBatch enqueues one chunk task per input, in input order. The batch
// future's results are aligned index-for-index with inputs.
func (p *Pool) SubmitBatch(inputs [][]byte, cfg watermark.Config) *BatchFuture {
	futures := make([]*Future, len(inputs))
	for i, input := range inputs {
		futures[i] = p.submit(input, cfg, Chunk(i, len(inputs)))
	}
	return &BatchFuture{futures: futures}
}

func (p *Pool) submit(input []byte, cfg watermark.Config, v Variant) *Future {
	t := &Task{
		ID:      p.nextID.Add(1),
		Input:   input,
		Config:  cfg,
		Variant: v,
		future:  newFuture(),
	}

	// submitCh is unbuffered: a send succeeds only once the scheduler has
	// taken the task, so every accepted task is either settled normally or
	// rejected during shutdown. Nothing is silently dropped in between.
	select {
	case p.submitCh <- t:
	case <-p.quitCh:
		t.future.settle(Result{Err: ErrTerminated})
	}
	return t.future
}

// Status returns a consistent occupancy snapshot.
func (p *Pool) Status() Status {
	reply := make(chan Status, 1)
	select {
	case p.statusCh <- reply:
		return <-reply
	case <-p.stopped:
		return Status{Total: len(p.slots)}
	}
}

// Terminate stops the pool immediately and unconditionally. Queued and
// in-flight tasks are rejected with ErrTerminated; in-flight engine calls are
// not waited for. Safe to call more than once; every caller returns only
// after all futures are settled.
func (p *Pool) Terminate() {
	p.stopOnce.Do(func() {
		p.logger.Info("terminating pool")
		close(p.quitCh)
		<-p.stopped
	})
}

// run is the scheduler goroutine: the single thread of control that owns the
// slot table and queue. It reacts to one event at a time, which is what makes
// the Status snapshot and the slot invariants consistent without locks.
func (p *Pool) run() {
	defer close(p.stopped)

	for {
		select {
		case t := <-p.submitCh:
			p.queue = append(p.queue, t)
			p.dispatch()
		case c := <-p.doneCh:
			p.settle(c)
			p.dispatch()
		case reply := <-p.statusCh:
			reply <- Status{Total: len(p.slots), Active: p.active, Queued: len(p.queue)}
		case <-p.quitCh:
			p.shutdown()
			return
		}
	}
}

// dispatch assigns queued tasks to idle slots: first idle slot in fixed slot
// order, head of the queue first. When several slots freed up in quick
// succession the loop drains as much of the queue as capacity allows, always
// in FIFO order. There is no priority and no work stealing; a slot runs at
// most one task regardless of task size.
func (p *Pool) dispatch() {
	for len(p.queue) > 0 {
		idx := -1
		for i := range p.slots {
			if !p.slots[i].busy {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}

		t := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]

		s := &p.slots[idx]
		s.busy = true
		s.current = t
		t.dispatchedAt = time.Now()
		p.active++
		s.tasks <- t
	}

	activeWorkers.Set(float64(p.active))
	queueDepth.Set(float64(len(p.queue)))
}

// settle frees the reporting slot and settles the task's future. A task
// failure is local: it rejects that future only, and the slot goes straight
// back into rotation.
func (p *Pool) settle(c completion) {
	s := &p.slots[c.worker]
	t := s.current
	s.busy = false
	s.current = nil
	p.active--
	activeWorkers.Set(float64(p.active))
	taskDuration.Observe(time.Since(t.dispatchedAt).Seconds())

	if c.err != nil {
		p.logger.Error("task failed", "task_id", t.ID, "worker", c.worker, "error", c.err)
		tasksTotal.WithLabelValues(outcomeFailed).Inc()
		t.future.settle(Result{Err: &TaskError{TaskID: t.ID, Err: c.err}})
		return
	}

	tasksTotal.WithLabelValues(outcomeCompleted).Inc()
	t.future.settle(Result{Data: c.data})
}

// shutdown rejects everything still pending so no caller is left hanging.
func (p *Pool) shutdown() {
	rejected := 0

	for _, t := range p.queue {
		t.future.settle(Result{Err: ErrTerminated})
		rejected++
	}
	p.queue = nil

	for i := range p.slots {
		s := &p.slots[i]
		if s.busy {
			s.current.future.settle(Result{Err: ErrTerminated})
			s.busy = false
			s.current = nil
			rejected++
		}
	}
	p.active = 0

	tasksTotal.WithLabelValues(outcomeRejected).Add(float64(rejected))
	activeWorkers.Set(0)
	queueDepth.Set(0)
	p.logger.Info("pool stopped", "rejected_tasks", rejected)
}
