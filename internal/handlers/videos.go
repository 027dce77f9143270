package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/aisaas/backend/internal/auth"
	"github.com/aisaas/backend/internal/logging"
	"github.com/aisaas/backend/internal/models"
	"github.com/aisaas/backend/internal/repositories"
	"github.com/aisaas/backend/internal/videogen"
)

const (
	msgInvalidUser      = "invalid user"
	msgUserLoadFailed   = "failed to load user"
	msgQuotaExceeded    = "API usage limit reached. Try again later."
	msgModelUnavailable = "model unavailable for this account or region"
	msgVideoGenerated   = "video generated successfully"

	defaultListLimit = 20
	maxListLimit     = 100
	enqueueTimeout   = 2 * time.Second
)

// VideoHandler exposes the video generation endpoints.
type VideoHandler struct {
	Users     UserStore
	Generator VideoGenerator
	Videos    VideoStore
	Jobs      JobStore
	Queue     JobQueue
	Limiter   RateLimiter
	NowFunc   func() time.Time
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	ModelUsed string `json:"model_used"`
	Ratio     string `json:"ratio"`
}

func (r generateRequest) toRequest() videogen.Request {
	return videogen.Request{Prompt: r.Prompt, AspectRatio: r.Ratio, PreferredModel: r.ModelUsed}
}

type generateResponse struct {
	Message string                `json:"message"`
	Video   models.GeneratedVideo `json:"video"`
}

type jobResponse struct {
	Job   models.GenerationJob   `json:"job"`
	Video *models.GeneratedVideo `json:"video,omitempty"`
}

// Generate handles POST /generate-video. The request blocks until the video is stored or the
// generation fails.
func (h VideoHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Generator == nil {
		logger.Error("video generation dependencies unavailable", "hasUsers", h.Users != nil, "hasGenerator", h.Generator != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("video generation unavailable"))
		return
	}

	body := decodeGenerateRequest(ctx, r.Body)

	user, status, ok := h.caller(ctx, http.StatusNotFound)
	if !ok {
		respondJSON(ctx, w, status, errorBody(callerFailure(status)))
		return
	}

	req, err := body.toRequest().Normalize()
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if !allowRequest(h.Limiter, r, "generate") {
		respondJSON(ctx, w, http.StatusTooManyRequests, errorBody("too many generation requests"))
		return
	}

	video, err := h.Generator.Generate(ctx, user.ID, req)
	if err != nil {
		status, message := generationFailure(err)
		logger.Error("video generation failed", "userId", user.ID, "status", status, "error", err)
		respondJSON(ctx, w, status, errorBody(message))
		return
	}

	respondJSON(ctx, w, http.StatusCreated, generateResponse{Message: msgVideoGenerated, Video: video})
}

// Enqueue handles POST /api/v1/videos/jobs by persisting a queued job and handing it to the
// background workers.
func (h VideoHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Jobs == nil || h.Queue == nil {
		logger.Error("generation queue dependencies unavailable", "hasUsers", h.Users != nil, "hasJobs", h.Jobs != nil, "hasQueue", h.Queue != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("video generation unavailable"))
		return
	}

	user, status, ok := h.caller(ctx, http.StatusUnauthorized)
	if !ok {
		respondJSON(ctx, w, status, errorBody(callerFailure(status)))
		return
	}

	req, err := decodeGenerateRequest(ctx, r.Body).toRequest().Normalize()
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if !allowRequest(h.Limiter, r, "generate") {
		respondJSON(ctx, w, http.StatusTooManyRequests, errorBody("too many generation requests"))
		return
	}

	now := h.now()
	job := models.GenerationJob{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Prompt:         req.Prompt,
		AspectRatio:    req.AspectRatio,
		PreferredModel: req.PreferredModel,
		Status:         models.JobStatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.Jobs.Create(ctx, job); err != nil {
		logger.Error("persist generation job", "userId", user.ID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("failed to queue generation"))
		return
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	if err := h.Queue.Enqueue(enqueueCtx, job); err != nil {
		logger.Warn("generation queue rejected job", "jobId", job.ID, "error", err)
		if markErr := h.Jobs.MarkFailed(context.WithoutCancel(ctx), job.ID, videogen.KindOther.String(), err.Error()); markErr != nil {
			logger.Error("mark rejected job failed", "jobId", job.ID, "error", markErr)
		}
		respondJSON(ctx, w, http.StatusServiceUnavailable, errorBody("generation queue is unavailable"))
		return
	}

	w.Header().Set("Location", "/api/v1/videos/jobs/"+job.ID)
	respondJSON(ctx, w, http.StatusAccepted, jobResponse{Job: job})
}

// JobStatus handles GET /api/v1/videos/jobs/{id}. Jobs owned by other users are reported as
// missing.
func (h VideoHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Jobs == nil {
		logger.Error("job lookup dependencies unavailable", "hasUsers", h.Users != nil, "hasJobs", h.Jobs != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("job lookup unavailable"))
		return
	}

	user, status, ok := h.caller(ctx, http.StatusUnauthorized)
	if !ok {
		respondJSON(ctx, w, status, errorBody(callerFailure(status)))
		return
	}

	job, err := h.Jobs.Find(ctx, r.PathValue("id"))
	if err != nil || job.UserID != user.ID {
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("load generation job", "jobId", r.PathValue("id"), "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, errorBody("failed to load job"))
			return
		}
		respondJSON(ctx, w, http.StatusNotFound, errorBody("job not found"))
		return
	}

	resp := jobResponse{Job: job}
	if job.Status == models.JobStatusSucceeded && job.VideoID != "" && h.Videos != nil {
		video, err := h.Videos.FindByID(ctx, job.VideoID)
		switch {
		case err == nil:
			resp.Video = &video
		case errors.Is(err, repositories.ErrNotFound):
			logger.Warn("job video missing", "jobId", job.ID, "videoId", job.VideoID)
		default:
			logger.Error("load job video", "jobId", job.ID, "videoId", job.VideoID, "error", err)
		}
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// List handles GET /api/v1/videos and returns the caller's most recent videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Videos == nil {
		logger.Error("video listing dependencies unavailable", "hasUsers", h.Users != nil, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("video listing unavailable"))
		return
	}

	user, status, ok := h.caller(ctx, http.StatusUnauthorized)
	if !ok {
		respondJSON(ctx, w, status, errorBody(callerFailure(status)))
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondJSON(ctx, w, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxListLimit)
	}

	videos, err := h.Videos.ListByUser(ctx, user.ID, limit)
	if err != nil {
		logger.Error("list generated videos", "userId", user.ID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("failed to list videos"))
		return
	}
	if videos == nil {
		videos = []models.GeneratedVideo{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}

// caller resolves the authenticated user. A missing token yields missingStatus; an unknown user
// always yields 404.
func (h VideoHandler) caller(ctx context.Context, missingStatus int) (models.User, int, bool) {
	logger := logging.FromContext(ctx)

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		logger.Warn("request without caller identity")
		return models.User{}, missingStatus, false
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("caller identity not found", "userId", userID)
			return models.User{}, http.StatusNotFound, false
		}
		logger.Error("load caller", "userId", userID, "error", err)
		return models.User{}, http.StatusInternalServerError, false
	}
	if !user.IsActive {
		logger.Warn("inactive caller", "userId", userID)
		return models.User{}, http.StatusNotFound, false
	}
	return user, 0, true
}

func callerFailure(status int) string {
	if status == http.StatusInternalServerError {
		return msgUserLoadFailed
	}
	return msgInvalidUser
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// decodeGenerateRequest treats an unreadable or malformed body as empty.
func decodeGenerateRequest(ctx context.Context, body io.Reader) generateRequest {
	var req generateRequest
	if body == nil {
		return req
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logging.FromContext(ctx).Warn("ignoring malformed generation payload", "error", err)
		return generateRequest{}
	}
	return req
}

// generationFailure maps a generation error onto a response status and message. Only
// unclassified failures surface the raw error text.
func generationFailure(err error) (int, string) {
	if errors.Is(err, videogen.ErrEmptyPrompt) {
		return http.StatusBadRequest, err.Error()
	}

	var exhausted *videogen.ExhaustedError
	if errors.As(err, &exhausted) {
		switch exhausted.Kind() {
		case videogen.KindQuotaExceeded:
			return http.StatusTooManyRequests, msgQuotaExceeded
		case videogen.KindModelUnavailable:
			return http.StatusNotFound, msgModelUnavailable
		default:
			return http.StatusInternalServerError, exhausted.Error()
		}
	}

	switch videogen.Classify(err) {
	case videogen.KindQuotaExceeded:
		return http.StatusTooManyRequests, msgQuotaExceeded
	case videogen.KindModelUnavailable:
		return http.StatusNotFound, msgModelUnavailable
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
