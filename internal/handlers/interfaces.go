package handlers

import (
	"context"

	"github.com/aisaas/backend/internal/models"
	"github.com/aisaas/backend/internal/videogen"
)

// UserStore captures the persistence operations required by the handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// PlanFinder resolves subscription plans by name.
type PlanFinder interface {
	FindByName(ctx context.Context, name string) (models.Plan, error)
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
}

// VideoGenerator runs a generation request to completion.
type VideoGenerator interface {
	Generate(ctx context.Context, userID string, req videogen.Request) (models.GeneratedVideo, error)
}

// VideoStore reads generated videos.
type VideoStore interface {
	FindByID(ctx context.Context, id string) (models.GeneratedVideo, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.GeneratedVideo, error)
}

// JobStore persists background generation jobs.
type JobStore interface {
	Create(ctx context.Context, job models.GenerationJob) error
	Find(ctx context.Context, id string) (models.GenerationJob, error)
	MarkFailed(ctx context.Context, id, kind, message string) error
}

// JobQueue schedules persisted jobs for background execution.
type JobQueue interface {
	Enqueue(ctx context.Context, job models.GenerationJob) error
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
