package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	auth := AuthHandler{Users: deps.Users, Plans: deps.Plans, Sessions: deps.Sessions, Limiter: deps.Limiter}
	videos := VideoHandler{
		Users:     deps.Users,
		Generator: deps.Generator,
		Videos:    deps.Videos,
		Jobs:      deps.Jobs,
		Queue:     deps.Queue,
		Limiter:   deps.Limiter,
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/generate-video", videos.Generate)
	mux.HandleFunc("/api/v1/videos", videos.List)
	mux.HandleFunc("/api/v1/videos/jobs", videos.Enqueue)
	mux.HandleFunc("/api/v1/videos/jobs/{id}", videos.JobStatus)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	Plans     PlanFinder
	Sessions  SessionManager
	Generator VideoGenerator
	Videos    VideoStore
	Jobs      JobStore
	Queue     JobQueue
	Limiter   RateLimiter
	DB        Pinger
}
