package videogen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aisaas/backend/internal/logging"
	"github.com/aisaas/backend/internal/models"
)

// Generator runs a generation request to completion.
type Generator interface {
	Generate(ctx context.Context, userID string, req Request) (models.GeneratedVideo, error)
}

// JobStore persists status transitions for background generation jobs.
type JobStore interface {
	MarkRunning(ctx context.Context, jobID string) error
	MarkSucceeded(ctx context.Context, jobID, videoID, modelUsed string) error
	MarkFailed(ctx context.Context, jobID, kind, message string) error
}

// JobQueueConfig controls the concurrency characteristics of the queue.
type JobQueueConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds a single job; it should be at least the generator's maximum wait.
	Timeout time.Duration
}

// JobQueue runs generation jobs on a fixed pool of workers.
type JobQueue struct {
	generator Generator
	store     JobStore
	logger    *slog.Logger
	timeout   time.Duration

	jobs   chan models.GenerationJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

const shutdownMessage = "generation cancelled: server shutting down"

// NewJobQueue starts cfg.Workers goroutines consuming queued jobs.
func NewJobQueue(generator Generator, store JobStore, cfg JobQueueConfig, logger *slog.Logger) *JobQueue {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &JobQueue{
		generator: generator,
		store:     store,
		logger:    logger,
		timeout:   cfg.Timeout,
		jobs:      make(chan models.GenerationJob, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	q.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go q.worker()
	}

	return q
}

// Enqueue schedules a job that has already been persisted as queued.
func (q *JobQueue) Enqueue(ctx context.Context, job models.GenerationJob) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return ErrQueueClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return ErrQueueClosed
	case q.jobs <- job:
		return nil
	}
}

// Shutdown stops accepting jobs, waits for in-flight jobs and fails whatever is still queued.
func (q *JobQueue) Shutdown(ctx context.Context) error {
	q.once.Do(q.cancel)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	for {
		select {
		case job := <-q.jobs:
			q.recordFailure(job.ID, KindOther.String(), shutdownMessage)
		default:
			return nil
		}
	}
}

func (q *JobQueue) worker() {
	defer q.wg.Done()

	for {
		// Stop before taking another job once shutdown has begun.
		if q.ctx.Err() != nil {
			return
		}

		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.handleJob(job)
		}
	}
}

func (q *JobQueue) handleJob(job models.GenerationJob) {
	if q.generator == nil || q.store == nil {
		q.logger.Error("generation queue missing dependencies", "jobId", job.ID, "hasGenerator", q.generator != nil, "hasStore", q.store != nil)
		if q.store != nil {
			q.recordFailure(job.ID, KindOther.String(), ErrClientUnavailable.Error())
		}
		return
	}

	logger := q.logger.With("jobId", job.ID, "userId", job.UserID)

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	if err := q.store.MarkRunning(ctx, job.ID); err != nil {
		logger.Error("mark job running", "error", err)
	}

	video, err := q.generator.Generate(ctx, job.UserID, Request{
		Prompt:         job.Prompt,
		AspectRatio:    job.AspectRatio,
		PreferredModel: job.PreferredModel,
	})
	if err != nil {
		kind := Classify(err)
		logger.Error("generation job failed", "kind", kind.String(), "error", err)
		q.recordFailure(job.ID, kind.String(), err.Error())
		return
	}

	if err := q.recordSuccess(job.ID, video); err != nil {
		logger.Error("mark job succeeded", "videoId", video.ID, "error", err)
	}
}

func (q *JobQueue) recordFailure(jobID, kind, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := q.store.MarkFailed(ctx, jobID, kind, message); err != nil {
		q.logger.Error("record job failure", "jobId", jobID, "error", err)
	}
}

func (q *JobQueue) recordSuccess(jobID string, video models.GeneratedVideo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return q.store.MarkSucceeded(ctx, jobID, video.ID, video.ModelUsed)
}
