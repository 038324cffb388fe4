package pool

import (
	"context"
	"sync"
)

// Result is the settled outcome of one task: exactly one of Data or Err.
type Result struct {
	Data []byte
	Err  error
}

// Future is a single-settlement completion handle. settle fires exactly once;
// later calls are no-ops, which is what makes "exactly-once settlement"
// mechanical rather than a protocol the scheduler has to uphold by care.
type Future struct {
	once sync.Once
	done chan struct{}
	res  Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(r Result) {
	f.once.Do(func() {
		f.res = r
		close(f.done)
	})
}

// Done returns a channel that is closed once the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future settles or ctx is done. The returned buffer is
// the worker's result buffer handed over untouched; the caller owns it.
func (f *Future) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return f.res.Data, f.res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BatchResult is one slot of a batch outcome, aligned index-for-index with
// the submitted inputs. Exactly one of Data or Err is set.
type BatchResult struct {
	Data []byte
	Err  error
}

// BatchFuture aggregates the futures of one batch submission.
type BatchFuture struct {
	futures []*Future
}

// Wait blocks until every constituent task settles or ctx is done. Results
// are returned in input order even when execution finished in a different
// order. The batch is collect-all: a failed task occupies its result slot
// with an error instead of discarding the work of its siblings, so the only
// batch-level error is ctx cancellation.
func (b *BatchFuture) Wait(ctx context.Context) ([]BatchResult, error) {
	results := make([]BatchResult, len(b.futures))
	for i, f := range b.futures {
		select {
		case <-f.done:
			results[i] = BatchResult(f.res)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, nil
}
