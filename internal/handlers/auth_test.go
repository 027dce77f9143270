package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aisaas/backend/internal/auth"
	"github.com/aisaas/backend/internal/models"
	"github.com/aisaas/backend/internal/repositories"
)

type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	if _, exists := s.users[user.Email]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Email] = user
	return nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

type planFinderStub struct {
	plans map[string]models.Plan
}

func (s planFinderStub) FindByName(_ context.Context, name string) (models.Plan, error) {
	plan, ok := s.plans[name]
	if !ok {
		return models.Plan{}, repositories.ErrNotFound
	}
	return plan, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func newSessionManager() *auth.Manager {
	return auth.NewManager(time.Minute, time.Hour, auth.NewInMemorySessionStore())
}

func TestAuthHandlerSignUp(t *testing.T) {
	store := newInMemoryUserStore()
	plans := planFinderStub{plans: map[string]models.Plan{models.PlanFree: {ID: "plan-free", Name: models.PlanFree}}}
	handler := AuthHandler{Users: store, Plans: plans, Sessions: newSessionManager()}

	body, err := json.Marshal(signUpRequest{Email: "Test@Example.com ", Password: "supersafe", FullName: "Test User", Username: "tester"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.SignUp(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}

	stored, err := store.FindByEmail(context.Background(), "test@example.com")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("supersafe")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if stored.PlanID != "plan-free" {
		t.Fatalf("expected free plan to be linked, got %q", stored.PlanID)
	}
	if stored.Role != models.RoleUser || !stored.IsActive {
		t.Fatalf("expected active regular user, got role=%q active=%v", stored.Role, stored.IsActive)
	}
	if stored.Username != "tester" || stored.FullName != "Test User" {
		t.Fatalf("unexpected profile fields %+v", stored)
	}
}

func TestAuthHandlerSignUpWithoutFreePlan(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Plans: planFinderStub{}, Sessions: newSessionManager()}

	body, _ := json.Marshal(signUpRequest{Email: "noplan@example.com", Password: "supersafe"})
	rec := httptest.NewRecorder()
	handler.SignUp(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}
	if stored := store.users["noplan@example.com"]; stored.PlanID != "" {
		t.Fatalf("expected no plan, got %q", stored.PlanID)
	}
}

func TestAuthHandlerSignUpValidation(t *testing.T) {
	store := newInMemoryUserStore()
	store.users["taken@example.com"] = models.User{ID: "user-1", Email: "taken@example.com"}
	handler := AuthHandler{Users: store, Sessions: newSessionManager()}

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed", body: "{", want: http.StatusBadRequest},
		{name: "missing password", body: `{"email":"a@example.com"}`, want: http.StatusBadRequest},
		{name: "invalid email", body: `{"email":"not-an-email","password":"supersafe"}`, want: http.StatusBadRequest},
		{name: "short password", body: `{"email":"a@example.com","password":"short"}`, want: http.StatusBadRequest},
		{name: "existing account", body: `{"email":"taken@example.com","password":"supersafe"}`, want: http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.SignUp(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString(tc.body)))
			if rec.Code != tc.want {
				t.Fatalf("expected status %d got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newSessionManager()}

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	store.users["login@example.com"] = models.User{ID: "user-1", Email: "login@example.com", Password: string(hashed), IsActive: true}
	store.users["disabled@example.com"] = models.User{ID: "user-2", Email: "disabled@example.com", Password: string(hashed)}

	body, err := json.Marshal(loginRequest{Email: "login@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}
	if resp.User == nil || resp.User.ID != "user-1" {
		t.Fatalf("expected user in response, got %+v", resp.User)
	}

	body, _ = json.Marshal(loginRequest{Email: "login@example.com", Password: "wrong"})
	rec = httptest.NewRecorder()
	handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}

	body, _ = json.Marshal(loginRequest{Email: "disabled@example.com", Password: "password123"})
	rec = httptest.NewRecorder()
	handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}
}

func TestAuthHandlerRateLimited(t *testing.T) {
	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: newSessionManager(), Limiter: denyLimiter{}}

	rec := httptest.NewRecorder()
	handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{}`)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d got %d", http.StatusTooManyRequests, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.SignUp(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString(`{}`)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d got %d", http.StatusTooManyRequests, rec.Code)
	}
}

func TestAuthHandlerRefresh(t *testing.T) {
	manager := newSessionManager()
	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: manager}

	body, err := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected a new refresh token to be issued")
	}

	rec = httptest.NewRecorder()
	handler.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected rotated token to be rejected with %d got %d", http.StatusUnauthorized, rec.Code)
	}
}
