package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ejneale/inkpress/internal/model"
	"github.com/ejneale/inkpress/internal/pool"
	"github.com/ejneale/inkpress/internal/service"
	"github.com/ejneale/inkpress/internal/store"
	"github.com/ejneale/inkpress/internal/watermark"
)

// echoExecutor returns its input, or fails when the input says so.
type echoExecutor struct{}

func (echoExecutor) Warmup() error { return nil }

func (echoExecutor) Apply(input []byte, _ watermark.Config) ([]byte, error) {
	if string(input) == "fail" {
		return nil, errors.New("codec error")
	}
	return input, nil
}

func newTestService(t *testing.T) (*service.Service, store.Store, *pool.Pool) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	p, err := pool.New(2, func() (pool.Executor, error) {
		return echoExecutor{}, nil
	}, logger)
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	t.Cleanup(p.Terminate)

	return service.New(p, st, logger), st, p
}

func TestProcessHappyPath(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	data, job, err := svc.Process(ctx, []byte("image-bytes"), watermark.Config{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("data = %q, want %q", data, "image-bytes")
	}

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.Kind != model.KindSingle {
		t.Errorf("Kind = %q, want single", got.Kind)
	}
	if got.BytesIn != len("image-bytes") {
		t.Errorf("BytesIn = %d, want %d", got.BytesIn, len("image-bytes"))
	}
	if got.BytesOut == nil || *got.BytesOut != len("image-bytes") {
		t.Errorf("BytesOut = %v, want %d", got.BytesOut, len("image-bytes"))
	}
	if got.DurationMS == nil {
		t.Error("DurationMS not recorded")
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not recorded")
	}
}

func TestProcessTaskFailureRecorded(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	_, job, err := svc.Process(ctx, []byte("fail"), watermark.Config{})
	var taskErr *pool.TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("error = %v, want TaskError", err)
	}

	got, gerr := st.GetJob(ctx, job.ID)
	if gerr != nil {
		t.Fatalf("GetJob: %v", gerr)
	}
	if got.Status != model.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.Error == "" {
		t.Error("job error message not recorded")
	}
	if got.BytesOut != nil {
		t.Errorf("BytesOut = %v, want nil for failed job", got.BytesOut)
	}
}

func TestProcessBatchAlignedResults(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	inputs := [][]byte{[]byte("a"), []byte("fail"), []byte("c")}
	results, jobs, err := svc.ProcessBatch(ctx, inputs, watermark.Config{})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(results) != 3 || len(jobs) != 3 {
		t.Fatalf("got %d results, %d jobs, want 3 each", len(results), len(jobs))
	}

	if results[0].Err != nil || string(results[0].Data) != "a" {
		t.Errorf("result 0 = (%q, %v), want (a, nil)", results[0].Data, results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("result 1 succeeded, want error")
	}
	if results[2].Err != nil || string(results[2].Data) != "c" {
		t.Errorf("result 2 = (%q, %v), want (c, nil)", results[2].Data, results[2].Err)
	}

	batchID := jobs[0].BatchID
	for i, job := range jobs {
		got, gerr := st.GetJob(ctx, job.ID)
		if gerr != nil {
			t.Fatalf("GetJob[%d]: %v", i, gerr)
		}
		if got.Kind != model.KindBatchMember {
			t.Errorf("job %d kind = %q, want batch_member", i, got.Kind)
		}
		if got.BatchID != batchID {
			t.Errorf("job %d batch ID = %q, want %q", i, got.BatchID, batchID)
		}
		if got.BatchIndex == nil || *got.BatchIndex != i {
			t.Errorf("job %d batch index = %v, want %d", i, got.BatchIndex, i)
		}

		want := model.StatusCompleted
		if i == 1 {
			want = model.StatusFailed
		}
		if got.Status != want {
			t.Errorf("job %d status = %q, want %q", i, got.Status, want)
		}
	}
}

func TestProcessAfterTerminateRecordsRejected(t *testing.T) {
	svc, st, p := newTestService(t)
	ctx := context.Background()

	p.Terminate()

	_, job, err := svc.Process(ctx, []byte("late"), watermark.Config{})
	if !errors.Is(err, pool.ErrTerminated) {
		t.Fatalf("error = %v, want ErrTerminated", err)
	}

	got, gerr := st.GetJob(ctx, job.ID)
	if gerr != nil {
		t.Fatalf("GetJob: %v", gerr)
	}
	if got.Status != model.StatusRejected {
		t.Errorf("Status = %q, want rejected", got.Status)
	}
}

func TestProcessPublishesEvents(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// The job ID is not known until Process returns, so verify the terminal
	// behavior: after settlement the topic is closed and late subscribers
	// see a closed channel immediately.
	_, job, err := svc.Process(ctx, []byte("x"), watermark.Config{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	ch, unsub := svc.Broker().Subscribe(job.ID)
	defer unsub()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel for settled job")
		}
	case <-time.After(time.Second):
		t.Error("subscriber channel not closed for settled job")
	}
}
