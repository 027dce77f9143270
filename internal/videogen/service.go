package videogen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/aisaas/backend/internal/logging"
	"github.com/aisaas/backend/internal/models"
)

// Request is a single caller-supplied generation request.
type Request struct {
	Prompt         string
	AspectRatio    string
	PreferredModel string
}

// Normalize trims the request and applies defaults. It fails with ErrEmptyPrompt when no
// prompt remains.
func (r Request) Normalize() (Request, error) {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.AspectRatio = strings.TrimSpace(r.AspectRatio)
	r.PreferredModel = strings.TrimSpace(r.PreferredModel)

	if r.Prompt == "" {
		return r, ErrEmptyPrompt
	}
	if r.AspectRatio == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	if r.PreferredModel == "" {
		r.PreferredModel = DefaultModel
	}
	return r, nil
}

// Config tunes the completion wait.
type Config struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Service drives a generation request from model selection to a persisted row.
type Service struct {
	client  Client
	storage AssetStorage
	videos  VideoRecorder

	pollInterval time.Duration
	maxWait      time.Duration

	NowFunc func() time.Time
}

// NewService constructs a Service. Zero config values fall back to a 5s poll interval and a
// 10 minute maximum wait.
func NewService(client Client, storage AssetStorage, videos VideoRecorder, cfg Config) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Minute
	}
	return &Service{
		client:       client,
		storage:      storage,
		videos:       videos,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
	}
}

// MaxWait reports the configured upper bound on the completion wait.
func (s *Service) MaxWait() time.Duration {
	return s.maxWait
}

// Start tries every candidate model in order until the service accepts one. Quota and
// model-unavailable failures move on to the next candidate; any other failure aborts with an
// *AttemptError. When all candidates fail it returns an *ExhaustedError.
func (s *Service) Start(ctx context.Context, req Request) (*Operation, string, error) {
	if s.client == nil {
		return nil, "", ErrClientUnavailable
	}

	logger := logging.FromContext(ctx)
	exhausted := &ExhaustedError{}

	for _, model := range CandidateModels(req.PreferredModel) {
		exhausted.Attempts = append(exhausted.Attempts, model)
		logger.Debug("starting video generation", "model", model, "ratio", req.AspectRatio)

		op, err := s.client.Start(ctx, model, req.Prompt, Options{AspectRatio: req.AspectRatio})
		if err == nil {
			if op == nil {
				return nil, "", &AttemptError{Model: model, Err: errors.New("generation service returned no operation")}
			}
			return op, model, nil
		}

		exhausted.Last = err
		switch Classify(err) {
		case KindQuotaExceeded:
			exhausted.QuotaSeen = true
			logger.Warn("model quota exceeded, trying next candidate", "model", model, "error", err)
		case KindModelUnavailable:
			exhausted.NotFoundSeen = true
			logger.Warn("model unavailable, trying next candidate", "model", model, "error", err)
		default:
			return nil, "", &AttemptError{Model: model, Err: err}
		}
	}

	return nil, "", exhausted
}

// Wait polls the operation at a constant interval until it completes, the context is
// cancelled or the maximum wait elapses.
func (s *Service) Wait(ctx context.Context, op *Operation) (*Operation, error) {
	if op == nil {
		return nil, errors.New("wait: nil operation")
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.maxWait)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-waitCtx.Done():
			return op, waitError(ctx, waitCtx)
		case <-ticker.C:
		}

		next, err := s.client.Poll(waitCtx, op)
		if err != nil {
			if waitCtx.Err() != nil {
				return op, waitError(ctx, waitCtx)
			}
			return op, err
		}
		if next != nil {
			op = next
		}
	}

	if op.Err != nil {
		return op, op.Err
	}
	return op, nil
}

func waitError(parent, wait context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(wait.Err(), context.DeadlineExceeded) {
		return ErrWaitTimeout
	}
	return wait.Err()
}

// Generate runs the whole pipeline for userID and returns the persisted row. Nothing is left
// in storage when the row cannot be recorded.
func (s *Service) Generate(ctx context.Context, userID string, req Request) (_ models.GeneratedVideo, err error) {
	req, err = req.Normalize()
	if err != nil {
		return models.GeneratedVideo{}, err
	}
	if s.storage == nil || s.videos == nil {
		return models.GeneratedVideo{}, errors.New("video generation dependencies unavailable")
	}

	ctx, span := logging.StartSpan(ctx, "videogen.generate")
	defer func() {
		span.Fail(err)
		span.End()
	}()
	logger := logging.FromContext(ctx)

	op, model, err := s.Start(ctx, req)
	if err != nil {
		return models.GeneratedVideo{}, err
	}
	logger.Info("video generation accepted", "model", model, "operation", op.Name)

	op, err = s.Wait(ctx, op)
	if err != nil {
		return models.GeneratedVideo{}, err
	}

	if len(op.Videos) == 0 {
		return models.GeneratedVideo{}, ErrNoVideos
	}
	video := op.Videos[0]

	data := video.Bytes
	if len(data) == 0 {
		data, err = s.client.Download(ctx, video)
		if err != nil {
			return models.GeneratedVideo{}, fmt.Errorf("download generated video: %w", err)
		}
	}

	ext := containerExtension(data)
	location, err := s.storage.Save(ctx, uuid.NewString()+"."+ext, bytes.NewReader(data))
	if err != nil {
		return models.GeneratedVideo{}, fmt.Errorf("store generated video: %w", err)
	}

	row := models.GeneratedVideo{
		ID:        uuid.NewString(),
		UserID:    userID,
		Prompt:    req.Prompt,
		ModelUsed: model,
		FilePath:  location,
		CreatedAt: s.now(),
	}

	if err := s.videos.Create(ctx, row); err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), location); delErr != nil {
			logger.Error("remove orphaned video", "location", location, "error", delErr)
		}
		return models.GeneratedVideo{}, fmt.Errorf("record generated video: %w", err)
	}

	logger.Info("video generated", "videoId", row.ID, "model", model, "size", len(data))
	return row, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func containerExtension(data []byte) string {
	if !filetype.IsVideo(data) {
		return "mp4"
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || kind.Extension == "" {
		return "mp4"
	}
	return kind.Extension
}
