package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aisaas/backend/internal/auth"
	"github.com/aisaas/backend/internal/logging"
	"github.com/aisaas/backend/internal/models"
	"github.com/aisaas/backend/internal/repositories"
)

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Users    UserStore
	Plans    PlanFinder
	Sessions SessionManager
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondJSON(ctx, w, http.StatusTooManyRequests, errorBody("too many login attempts"))
		return
	}
	if !h.ready(ctx, w) {
		return
	}

	var req loginRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("email and password are required"))
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password))
	}
	if err != nil {
		// Unknown accounts and wrong passwords are indistinguishable to the caller.
		logger.Warn("login rejected", "email", req.Email, "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, errorBody("invalid credentials"))
		return
	}
	if !user.IsActive {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("account is disabled"))
		return
	}

	h.issue(ctx, w, http.StatusOK, user)
}

// SignUp handles POST /api/v1/auth/signup requests. New accounts are regular, active users
// linked to the Free plan when it exists.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "signup") {
		respondJSON(ctx, w, http.StatusTooManyRequests, errorBody("too many signup attempts"))
		return
	}
	if !h.ready(ctx, w) {
		return
	}

	var req signUpRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	req.normalize()
	if problem := req.validate(); problem != "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody(problem))
		return
	}

	switch _, err := h.Users.FindByEmail(ctx, req.Email); {
	case err == nil:
		respondJSON(ctx, w, http.StatusConflict, errorBody("account already exists"))
		return
	case !errors.Is(err, repositories.ErrNotFound):
		logger.Error("signup user lookup failed", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("unable to verify existing accounts"))
		return
	}

	planID, err := h.defaultPlanID(ctx)
	if err != nil {
		logger.Error("signup plan lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("unable to assign a plan"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("failed to secure password"))
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		FullName:  req.FullName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashed),
		Role:      models.RoleUser,
		IsActive:  true,
		PlanID:    planID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, errorBody("account already exists"))
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("failed to create account"))
		return
	}

	logger.Info("account created", "userId", user.ID, "planId", planID)
	h.issue(ctx, w, http.StatusCreated, user)
}

// Refresh exchanges a refresh token for a new token pair. The old refresh token stops working.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Sessions == nil {
		logging.FromContext(ctx).Error("session manager unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("session service unavailable"))
		return
	}

	var req refreshRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("refresh token is required"))
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logging.FromContext(ctx).Warn("refresh failed", "error", err, "status", status)
		respondJSON(ctx, w, status, errorBody("unable to refresh session"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

func (h AuthHandler) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h.Users != nil && h.Sessions != nil {
		return true
	}
	logging.FromContext(ctx).Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
	respondJSON(ctx, w, http.StatusInternalServerError, errorBody("authentication services unavailable"))
	return false
}

func (h AuthHandler) issue(ctx context.Context, w http.ResponseWriter, status int, user models.User) {
	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to issue session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("failed to create session"))
		return
	}
	respondJSON(ctx, w, status, authResponse{Tokens: tokens, User: newUserView(user)})
}

func (h AuthHandler) defaultPlanID(ctx context.Context) (string, error) {
	if h.Plans == nil {
		return "", nil
	}
	plan, err := h.Plans.FindByName(ctx, models.PlanFree)
	if errors.Is(err, repositories.ErrNotFound) {
		logging.FromContext(ctx).Warn("default plan missing, creating account without a plan", "plan", models.PlanFree)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return plan.ID, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

const minPasswordLength = 8

func (r *signUpRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Username = strings.TrimSpace(r.Username)
}

// validate returns a client-facing problem description, or "" when the request is acceptable.
func (r signUpRequest) validate() string {
	switch {
	case r.Email == "" || r.Password == "":
		return "email and password are required"
	case !validEmail(r.Email):
		return "invalid email address"
	case len(r.Password) < minPasswordLength:
		return "password must be at least 8 characters"
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
	PlanID   string `json:"plan_id,omitempty"`
}

func newUserView(user models.User) *userView {
	return &userView{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Username: user.Username,
		Role:     user.Role,
		PlanID:   user.PlanID,
	}
}

type authResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
	User   *userView            `json:"user,omitempty"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// decodeBody decodes the JSON request body into dst, answering 400 itself on failure.
func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logging.FromContext(ctx).Warn("invalid request payload", "path", r.URL.Path, "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	logger := logging.FromContext(ctx)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encode response body", "status", status, "error", err)
		return
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
