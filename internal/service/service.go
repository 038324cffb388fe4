package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ejneale/inkpress/internal/model"
	"github.com/ejneale/inkpress/internal/pool"
	"github.com/ejneale/inkpress/internal/store"
	"github.com/ejneale/inkpress/internal/watermark"
)

// Service ties the pool to the job store. Every submission gets a persisted
// job record whose status follows the task: pending on creation, running once
// the pool has accepted it, then completed, failed, or rejected when the
// future settles.
type Service struct {
	pool   *pool.Pool
	store  store.Store
	broker *Broker
	logger *slog.Logger
}

// New creates a service around an initialized pool.
func New(p *pool.Pool, s store.Store, logger *slog.Logger) *Service {
	return &Service{
		pool:   p,
		store:  s,
		broker: NewBroker(),
		logger: logger,
	}
}

// Broker returns the service's event broker for SSE subscription.
func (s *Service) Broker() *Broker {
	return s.broker
}

// PoolStatus returns the pool's occupancy snapshot.
func (s *Service) PoolStatus() pool.Status {
	return s.pool.Status()
}

// Process runs one watermark task end to end and returns the result bytes
// together with the settled job record. Task failures are returned to the
// caller and recorded on the job; they never affect other tasks.
func (s *Service) Process(ctx context.Context, input []byte, cfg watermark.Config) ([]byte, *model.Job, error) {
	job := &model.Job{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Kind:      model.KindSingle,
		BytesIn:   len(input),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}

	fut := s.pool.Submit(input, cfg)
	start := s.markRunning(job)

	data, err := fut.Wait(ctx)
	s.finish(job, data, err, start)
	return data, job, err
}

// ProcessBatch runs one task per input and returns collect-all results
// aligned index-for-index with inputs, together with the per-member job
// records. The only batch-level error is ctx cancellation.
func (s *Service) ProcessBatch(ctx context.Context, inputs [][]byte, cfg watermark.Config) ([]pool.BatchResult, []*model.Job, error) {
	batchID := model.NewID()
	jobs := make([]*model.Job, len(inputs))
	now := time.Now().UTC()

	for i, input := range inputs {
		idx := i
		jobs[i] = &model.Job{
			ID:         model.NewID(),
			Status:     model.StatusPending,
			Kind:       model.KindBatchMember,
			BatchID:    batchID,
			BatchIndex: &idx,
			BytesIn:    len(input),
			CreatedAt:  now,
		}
		if err := s.store.CreateJob(ctx, jobs[i]); err != nil {
			return nil, nil, fmt.Errorf("create batch job %d: %w", i, err)
		}
	}

	bf := s.pool.SubmitBatch(inputs, cfg)

	starts := make([]time.Time, len(jobs))
	for i, job := range jobs {
		starts[i] = s.markRunning(job)
	}

	results, err := bf.Wait(ctx)
	if err != nil {
		return nil, jobs, err
	}

	for i, r := range results {
		s.finish(jobs[i], r.Data, r.Err, starts[i])
	}
	return results, jobs, nil
}

// markRunning transitions the job to running once the pool has taken it and
// returns the wall-clock start for duration accounting.
func (s *Service) markRunning(job *model.Job) time.Time {
	start := time.Now().UTC()
	job.Status = model.StatusRunning
	job.StartedAt = &start

	if err := s.store.UpdateJobStatus(context.Background(), job.ID, model.StatusRunning); err != nil {
		s.logger.Error("failed to transition to running", "job_id", job.ID, "error", err)
	}
	s.broker.Publish(job.ID, Event{JobID: job.ID, Status: model.StatusRunning})
	return start
}

// finish settles the job record from the task outcome. Store updates use a
// background context so a caller that gave up waiting does not also lose the
// record of what happened.
func (s *Service) finish(job *model.Job, data []byte, taskErr error, start time.Time) {
	// Close the event stream when settlement is recorded, regardless of outcome.
	defer s.broker.Close(job.ID)

	now := time.Now().UTC()
	durationMS := int(now.Sub(start).Milliseconds())

	job.DurationMS = &durationMS
	job.FinishedAt = &now

	switch {
	case taskErr == nil:
		bytesOut := len(data)
		job.Status = model.StatusCompleted
		job.BytesOut = &bytesOut
	case errors.Is(taskErr, pool.ErrTerminated):
		job.Status = model.StatusRejected
		job.Error = taskErr.Error()
	default:
		job.Status = model.StatusFailed
		job.Error = taskErr.Error()
	}

	if err := s.store.UpdateJob(context.Background(), job); err != nil {
		s.logger.Error("failed to update settled job", "job_id", job.ID, "error", err)
	}
	s.broker.Publish(job.ID, Event{JobID: job.ID, Status: job.Status, Error: job.Error})
}
