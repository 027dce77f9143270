package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aisaas/backend/internal/db"
	"github.com/aisaas/backend/internal/models"
)

// PostgresJobRepository persists background generation jobs.
type PostgresJobRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresJobRepository constructs a job repository backed by PostgreSQL.
func NewPostgresJobRepository(pool db.Pool) *PostgresJobRepository {
	return &PostgresJobRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a queued job.
func (r *PostgresJobRepository) Create(ctx context.Context, job models.GenerationJob) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	status := job.Status
	if status == "" {
		status = models.JobStatusQueued
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO generation_jobs (id, user_id, prompt, aspect_ratio, preferred_model, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, job.ID, job.UserID, job.Prompt, job.AspectRatio, job.PreferredModel, status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert generation job: %w", err)
	}

	return nil
}

// Find loads a job by identifier.
func (r *PostgresJobRepository) Find(ctx context.Context, id string) (models.GenerationJob, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.GenerationJob{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, prompt, aspect_ratio, preferred_model, status, model_used,
               COALESCE(video_id, ''), error_kind, error_message, created_at, updated_at, completed_at
        FROM generation_jobs
        WHERE id = $1
    `, id)

	var (
		job         models.GenerationJob
		completedAt *time.Time
	)
	if err := row.Scan(&job.ID, &job.UserID, &job.Prompt, &job.AspectRatio, &job.PreferredModel, &job.Status, &job.ModelUsed,
		&job.VideoID, &job.ErrorKind, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &completedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GenerationJob{}, ErrNotFound
		}
		return models.GenerationJob{}, fmt.Errorf("select generation job: %w", err)
	}

	if completedAt != nil {
		t := completedAt.UTC()
		job.CompletedAt = &t
	}
	return job, nil
}

// MarkRunning moves a queued job to running.
func (r *PostgresJobRepository) MarkRunning(ctx context.Context, id string) error {
	return r.update(ctx, "mark job running", `
        UPDATE generation_jobs
        SET status = $2, updated_at = $3
        WHERE id = $1
    `, id, models.JobStatusRunning, r.now())
}

// MarkSucceeded records the video produced by a job.
func (r *PostgresJobRepository) MarkSucceeded(ctx context.Context, id, videoID, modelUsed string) error {
	now := r.now()
	return r.update(ctx, "mark job succeeded", `
        UPDATE generation_jobs
        SET status = $2, video_id = $3, model_used = $4, error_kind = '', error_message = '',
            updated_at = $5, completed_at = $5
        WHERE id = $1
    `, id, models.JobStatusSucceeded, videoID, modelUsed, now)
}

// MarkFailed records why a job failed.
func (r *PostgresJobRepository) MarkFailed(ctx context.Context, id, kind, message string) error {
	now := r.now()
	return r.update(ctx, "mark job failed", `
        UPDATE generation_jobs
        SET status = $2, error_kind = $3, error_message = $4, updated_at = $5, completed_at = $5
        WHERE id = $1
    `, id, models.JobStatusFailed, kind, message, now)
}

// FailUnfinished fails every queued or running job. It is called at startup because the
// in-process queue does not survive a restart.
func (r *PostgresJobRepository) FailUnfinished(ctx context.Context, message string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	now := r.now()
	tag, err := conn.Exec(ctx, `
        UPDATE generation_jobs
        SET status = $1, error_kind = 'other', error_message = $2, updated_at = $3, completed_at = $3
        WHERE status IN ($4, $5)
    `, models.JobStatusFailed, message, now, models.JobStatusQueued, models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("fail unfinished jobs: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresJobRepository) update(ctx context.Context, op, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

var _ JobRepository = (*PostgresJobRepository)(nil)
