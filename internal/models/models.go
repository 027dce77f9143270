package models

import "time"

// User represents an account within the platform.
type User struct {
	ID        string
	FullName  string
	Username  string
	Email     string
	Password  string
	Role      string
	IsActive  bool
	PlanID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Plan is a subscription tier a user can be linked to.
type Plan struct {
	ID           string
	Name         string
	PriceCents   int64
	MonthlyVideo int
	CreatedAt    time.Time
}

const (
	PlanFree  = "Free"
	PlanBasic = "Basic"
	PlanPro   = "Pro"
)

// GeneratedVideo records a video rendered by the generation service and stored by the backend.
// Rows are written once and never mutated.
type GeneratedVideo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Prompt    string    `json:"prompt"`
	ModelUsed string    `json:"model_used"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationJob tracks a video generation running in the background.
type GenerationJob struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Prompt         string     `json:"prompt"`
	AspectRatio    string     `json:"ratio"`
	PreferredModel string     `json:"model_requested"`
	Status         string     `json:"status"`
	ModelUsed      string     `json:"model_used,omitempty"`
	VideoID        string     `json:"video_id,omitempty"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	ErrorMessage   string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
