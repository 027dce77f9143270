package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aisaas/backend/internal/auth"
	"github.com/aisaas/backend/internal/config"
	"github.com/aisaas/backend/internal/db"
	"github.com/aisaas/backend/internal/handlers"
	"github.com/aisaas/backend/internal/logging"
	"github.com/aisaas/backend/internal/middleware"
	"github.com/aisaas/backend/internal/repositories"
	"github.com/aisaas/backend/internal/storage"
	"github.com/aisaas/backend/internal/videogen"
)

// jobTimeoutMargin leaves room for download and upload after the completion wait.
const jobTimeoutMargin = 5 * time.Minute

// rateLimiterTTL is how long an idle client's limiter is retained.
const rateLimiterTTL = 10 * time.Minute

// services groups the handler dependencies with the collaborators serve needs directly.
type services struct {
	handlers.Dependencies
	Auth *auth.Manager
}

// buildDependencies wires together concrete implementations used by the HTTP handlers. The
// returned cleanup drains the generation queue and releases storage clients.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (services, func(context.Context) error, error) {
	logger := logging.FromContext(ctx)

	assets, err := storage.New(ctx, cfg)
	if err != nil {
		return services{}, nil, fmt.Errorf("configure video storage: %w", err)
	}

	var client videogen.Client
	genaiCfg := videogen.GenAIConfig{
		APIKey:   cfg.Generation.APIKey,
		Backend:  cfg.Generation.Backend,
		Project:  cfg.Generation.Project,
		Location: cfg.Generation.Location,
	}
	if genaiCfg.APIKey != "" || genaiCfg.Backend == "vertex" {
		genaiClient, err := videogen.NewGenAIClient(ctx, genaiCfg)
		if err != nil {
			closeStorage(assets)
			return services{}, nil, err
		}
		client = genaiClient
	} else {
		logger.Warn("video generation disabled: no api key configured")
	}

	users := repositories.NewPostgresUserRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)
	jobs := repositories.NewPostgresJobRepository(pool)
	sessions := auth.NewManager(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, repositories.NewPostgresSessionStore(pool))

	generator := videogen.NewService(client, assets, videos, videogen.Config{
		PollInterval: cfg.Generation.PollInterval,
		MaxWait:      cfg.Generation.MaxWait,
	})

	queue := videogen.NewJobQueue(generator, jobs, videogen.JobQueueConfig{
		QueueSize: cfg.Jobs.QueueSize,
		Workers:   cfg.Jobs.Workers,
		Timeout:   generator.MaxWait() + jobTimeoutMargin,
	}, logger)

	var limiter handlers.RateLimiter
	if cfg.RateLimit.Requests > 0 {
		limiter = middleware.NewKeyedLimiter(middleware.Limit{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
			Burst:    cfg.RateLimit.Burst,
		}, rateLimiterTTL)
	}

	svc := services{
		Dependencies: handlers.Dependencies{
			Users:     users,
			Plans:     repositories.NewPostgresPlanRepository(pool),
			Sessions:  sessions,
			Generator: generator,
			Videos:    videos,
			Jobs:      jobs,
			Queue:     queue,
			Limiter:   limiter,
			DB:        pool,
		},
		Auth: sessions,
	}

	cleanup := func(ctx context.Context) error {
		return errors.Join(queue.Shutdown(ctx), closeStorage(assets))
	}

	return svc, cleanup, nil
}

func closeStorage(assets storage.Storage) error {
	if closer, ok := assets.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
