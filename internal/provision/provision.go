// Package provision seeds the records every deployment needs: the default subscription plans
// and an administrator account.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aisaas/backend/internal/logging"
	"github.com/aisaas/backend/internal/models"
	"github.com/aisaas/backend/internal/repositories"
)

// UserStore is the subset of user persistence needed for provisioning.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// PlanStore is the subset of plan persistence needed for provisioning.
type PlanStore interface {
	UpsertByName(ctx context.Context, plan models.Plan) (models.Plan, error)
	FindByName(ctx context.Context, name string) (models.Plan, error)
}

// Result describes what EnsureAdmin did.
type Result int

const (
	ResultCreated Result = iota
	ResultAlreadyExists
	ResultPlanMissing
)

func (r Result) String() string {
	switch r {
	case ResultCreated:
		return "created"
	case ResultAlreadyExists:
		return "already_exists"
	case ResultPlanMissing:
		return "plan_missing"
	default:
		return "unknown"
	}
}

// AdminSpec describes the administrator account.
type AdminSpec struct {
	Email    string
	Password string
	Username string
	FullName string
}

// DefaultAdmin is used for fields left empty in an AdminSpec.
var DefaultAdmin = AdminSpec{
	Email:    "admin@example.com",
	Password: "Admin123!",
	Username: "admin",
	FullName: "Administrador",
}

// DefaultPlans lists the plans every deployment offers.
var DefaultPlans = []models.Plan{
	{Name: models.PlanFree, PriceCents: 0, MonthlyVideo: 3},
	{Name: models.PlanBasic, PriceCents: 1990, MonthlyVideo: 20},
	{Name: models.PlanPro, PriceCents: 4990, MonthlyVideo: 100},
}

// AdminPlan is the plan the administrator is linked to.
const AdminPlan = models.PlanPro

// Provisioner creates the seed records. Every operation is safe to repeat.
type Provisioner struct {
	Users   UserStore
	Plans   PlanStore
	NowFunc func() time.Time
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

// EnsureDefaultPlans creates missing default plans and refreshes the pricing of existing ones.
func (p *Provisioner) EnsureDefaultPlans(ctx context.Context) error {
	if p.Plans == nil {
		return errors.New("provision: plan store unavailable")
	}

	logger := logging.FromContext(ctx)
	for _, plan := range DefaultPlans {
		plan.ID = uuid.NewString()
		plan.CreatedAt = p.now()

		stored, err := p.Plans.UpsertByName(ctx, plan)
		if err != nil {
			return fmt.Errorf("ensure plan %s: %w", plan.Name, err)
		}
		logger.Debug("plan ensured", "plan", stored.Name, "planId", stored.ID)
	}
	return nil
}

// EnsureAdmin makes sure the administrator account exists. An existing account with the same
// email is left untouched. When the admin plan cannot be found nothing is written and
// ResultPlanMissing is returned.
func (p *Provisioner) EnsureAdmin(ctx context.Context, spec AdminSpec) (Result, models.User, error) {
	if p.Users == nil || p.Plans == nil {
		return 0, models.User{}, errors.New("provision: dependencies unavailable")
	}

	spec = spec.withDefaults()
	logger := logging.FromContext(ctx).With("email", spec.Email)

	if err := p.EnsureDefaultPlans(ctx); err != nil {
		return 0, models.User{}, err
	}

	existing, err := p.Users.FindByEmail(ctx, spec.Email)
	if err == nil {
		logger.Info("admin already exists", "username", existing.Username)
		return ResultAlreadyExists, existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return 0, models.User{}, fmt.Errorf("look up admin: %w", err)
	}

	plan, err := p.Plans.FindByName(ctx, AdminPlan)
	if errors.Is(err, repositories.ErrNotFound) {
		logger.Error("admin plan not found, check the plan seed", "plan", AdminPlan)
		return ResultPlanMissing, models.User{}, nil
	}
	if err != nil {
		return 0, models.User{}, fmt.Errorf("look up plan %s: %w", AdminPlan, err)
	}

	cost := p.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(spec.Password), cost)
	if err != nil {
		return 0, models.User{}, fmt.Errorf("hash admin password: %w", err)
	}

	now := p.now()
	admin := models.User{
		ID:        uuid.NewString(),
		FullName:  spec.FullName,
		Username:  spec.Username,
		Email:     spec.Email,
		Password:  string(hashed),
		Role:      models.RoleAdmin,
		IsActive:  true,
		PlanID:    plan.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := p.Users.Create(ctx, admin); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// Another process created it between the lookup and the insert.
			existing, findErr := p.Users.FindByEmail(ctx, spec.Email)
			if findErr != nil {
				return 0, models.User{}, fmt.Errorf("look up admin after conflict: %w", findErr)
			}
			return ResultAlreadyExists, existing, nil
		}
		return 0, models.User{}, fmt.Errorf("create admin: %w", err)
	}

	logger.Info("admin created", "userId", admin.ID, "plan", plan.Name)
	return ResultCreated, admin, nil
}

func (s AdminSpec) withDefaults() AdminSpec {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	if s.Email == "" {
		s.Email = DefaultAdmin.Email
	}
	if s.Password == "" {
		s.Password = DefaultAdmin.Password
	}
	if strings.TrimSpace(s.Username) == "" {
		s.Username = DefaultAdmin.Username
	}
	if strings.TrimSpace(s.FullName) == "" {
		s.FullName = DefaultAdmin.FullName
	}
	return s
}

func (p *Provisioner) now() time.Time {
	if p.NowFunc != nil {
		return p.NowFunc()
	}
	return time.Now().UTC()
}
