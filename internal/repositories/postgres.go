package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aisaas/backend/internal/db"
	"github.com/aisaas/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, full_name, COALESCE(username, ''), email, password_hash, role, is_active, COALESCE(plan_id, ''), created_at, updated_at`

// Create persists a new user record. A duplicate email or username yields ErrConflict and an
// unknown plan yields ErrNotFound.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	role := user.Role
	if role == "" {
		role = models.RoleUser
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, full_name, username, email, password_hash, role, is_active, plan_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, user.ID, user.FullName, nullable(user.Username), user.Email, user.Password, role, user.IsActive, nullable(user.PlanID), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)

	var user models.User
	if err := row.Scan(&user.ID, &user.FullName, &user.Username, &user.Email, &user.Password, &user.Role, &user.IsActive, &user.PlanID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// PostgresPlanRepository provides PostgreSQL-backed persistence for subscription plans.
type PostgresPlanRepository struct {
	pool db.Pool
}

// NewPostgresPlanRepository constructs a plan repository backed by PostgreSQL.
func NewPostgresPlanRepository(pool db.Pool) *PostgresPlanRepository {
	return &PostgresPlanRepository{pool: pool}
}

// UpsertByName creates the plan or refreshes its pricing when a plan with the same name
// exists. The stored row, including its original identifier, is returned.
func (r *PostgresPlanRepository) UpsertByName(ctx context.Context, plan models.Plan) (models.Plan, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Plan{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO plans (id, name, price_cents, monthly_videos, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (name)
        DO UPDATE SET price_cents = EXCLUDED.price_cents, monthly_videos = EXCLUDED.monthly_videos
        RETURNING id, name, price_cents, monthly_videos, created_at
    `, plan.ID, plan.Name, plan.PriceCents, plan.MonthlyVideo, plan.CreatedAt)

	var stored models.Plan
	if err := row.Scan(&stored.ID, &stored.Name, &stored.PriceCents, &stored.MonthlyVideo, &stored.CreatedAt); err != nil {
		return models.Plan{}, fmt.Errorf("upsert plan %s: %w", plan.Name, err)
	}

	return stored, nil
}

// FindByName fetches a plan by its unique name.
func (r *PostgresPlanRepository) FindByName(ctx context.Context, name string) (models.Plan, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Plan{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, name, price_cents, monthly_videos, created_at
        FROM plans
        WHERE name = $1
    `, name)

	var plan models.Plan
	if err := row.Scan(&plan.ID, &plan.Name, &plan.PriceCents, &plan.MonthlyVideo, &plan.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Plan{}, ErrNotFound
		}
		return models.Plan{}, fmt.Errorf("select plan by name: %w", err)
	}

	return plan, nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for generated videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new generated video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.GeneratedVideo) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO generated_video_contents (id, user_id, prompt, model_used, file_path, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, video.ID, video.UserID, video.Prompt, video.ModelUsed, video.FilePath, video.CreatedAt)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert generated video: %w", err)
	}

	return nil
}

// FindByID fetches a generated video by identifier.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.GeneratedVideo, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.GeneratedVideo{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, prompt, model_used, file_path, created_at
        FROM generated_video_contents
        WHERE id = $1
    `, id)

	var video models.GeneratedVideo
	if err := row.Scan(&video.ID, &video.UserID, &video.Prompt, &video.ModelUsed, &video.FilePath, &video.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GeneratedVideo{}, ErrNotFound
		}
		return models.GeneratedVideo{}, fmt.Errorf("select generated video: %w", err)
	}

	return video, nil
}

// ListByUser returns the user's generated videos, newest first.
func (r *PostgresVideoRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.GeneratedVideo, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, prompt, model_used, file_path, created_at
        FROM generated_video_contents
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query generated videos: %w", err)
	}
	defer rows.Close()

	videos := make([]models.GeneratedVideo, 0)
	for rows.Next() {
		var video models.GeneratedVideo
		if err := rows.Scan(&video.ID, &video.UserID, &video.Prompt, &video.ModelUsed, &video.FilePath, &video.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generated video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generated videos: %w", err)
	}

	return videos, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

var (
	_ UserRepository  = (*PostgresUserRepository)(nil)
	_ PlanRepository  = (*PostgresPlanRepository)(nil)
	_ VideoRepository = (*PostgresVideoRepository)(nil)
	_ db.Pool         = (*pgxpool.Pool)(nil)
)
