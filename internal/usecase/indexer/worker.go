package indexer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// reindexer is the job body contract.
type reindexer interface {
	ReindexMeeting(ctx context.Context, meetingID string) (Result, error)
}

// JobResult is delivered on the job's Done channel exactly once.
type JobResult struct {
	JobID     string
	MeetingID string
	Result    Result
	Err       error
}

// Job is a queued reindex request.
type Job struct {
	ID        string
	MeetingID string
	done      chan JobResult
}

// Done returns the channel the job's result is delivered on.
func (j *Job) Done() <-chan JobResult {
	return j.done
}

// Worker runs reindex jobs on a bounded goroutine pool. Jobs observe the
// submitting context, so cancelling it aborts an in-flight reindex.
type Worker struct {
	pool   *ants.Pool
	svc    reindexer
	logger *zap.Logger
}

// NewWorker creates a worker with the given pool size.
func NewWorker(size int, svc reindexer, logger *zap.Logger) (*Worker, error) {
	if size <= 0 {
		size = 4
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Worker{pool: pool, svc: svc, logger: logger}, nil
}

// Submit queues a reindex for the meeting. The returned job's Done channel
// receives the result; it is buffered, so the caller may abandon it.
func (w *Worker) Submit(ctx context.Context, meetingID string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		done:      make(chan JobResult, 1),
	}

	err := w.pool.Submit(func() {
		if err := ctx.Err(); err != nil {
			job.done <- JobResult{JobID: job.ID, MeetingID: meetingID, Err: err}
			return
		}

		result, err := w.svc.ReindexMeeting(ctx, meetingID)
		if err != nil {
			w.logger.Error("Reindex job failed",
				zap.String("job_id", job.ID),
				zap.String("meeting_id", meetingID),
				zap.Error(err),
			)
		}
		job.done <- JobResult{JobID: job.ID, MeetingID: meetingID, Result: result, Err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("submit reindex job: %w", err)
	}

	w.logger.Info("Reindex job queued",
		zap.String("job_id", job.ID),
		zap.String("meeting_id", meetingID),
	)
	return job, nil
}

// Running reports the number of in-flight jobs.
func (w *Worker) Running() int {
	return w.pool.Running()
}

// Close releases the pool. Queued jobs finish first.
func (w *Worker) Close() {
	w.pool.Release()
}
