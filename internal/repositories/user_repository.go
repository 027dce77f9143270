package repositories

import (
	"context"

	"github.com/aisaas/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// PlanRepository defines the data access contract for subscription plans.
type PlanRepository interface {
	UpsertByName(ctx context.Context, plan models.Plan) (models.Plan, error)
	FindByName(ctx context.Context, name string) (models.Plan, error)
}
