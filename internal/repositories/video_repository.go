package repositories

import (
	"context"

	"github.com/aisaas/backend/internal/models"
)

// VideoRepository defines persistence for generated videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.GeneratedVideo) error
	FindByID(ctx context.Context, id string) (models.GeneratedVideo, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.GeneratedVideo, error)
}

// JobRepository defines persistence for background generation jobs.
type JobRepository interface {
	Create(ctx context.Context, job models.GenerationJob) error
	Find(ctx context.Context, id string) (models.GenerationJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkSucceeded(ctx context.Context, id, videoID, modelUsed string) error
	MarkFailed(ctx context.Context, id, kind, message string) error
	FailUnfinished(ctx context.Context, message string) (int64, error)
}
