package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aisaas/backend/internal/auth"
	"github.com/aisaas/backend/internal/db"
)

// PostgresSessionStore persists access and refresh tokens to PostgreSQL.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save stores or updates a session record.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (token, user_id, kind, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (token)
        DO UPDATE SET user_id = EXCLUDED.user_id, kind = EXCLUDED.kind, expires_at = EXCLUDED.expires_at
    `, session.Token, session.UserID, string(session.Kind), session.ExpiresAt.UTC())
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Find loads a session by its token.
func (s *PostgresSessionStore) Find(ctx context.Context, token string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT token, user_id, kind, expires_at
        FROM sessions
        WHERE token = $1
    `, token)

	var (
		session   auth.Session
		kind      string
		expiresAt time.Time
	)
	if err := row.Scan(&session.Token, &session.UserID, &kind, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}

	session.Kind = auth.SessionKind(kind)
	session.ExpiresAt = expiresAt.UTC()
	return session, nil
}

// Delete removes a session by its token.
func (s *PostgresSessionStore) Delete(ctx context.Context, token string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE token = $1
    `, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
