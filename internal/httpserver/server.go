package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner  *http.Server
	cancel context.CancelFunc
}

// New constructs a server listening on the provided port. writeTimeout must cover the slowest
// synchronous handler; zero falls back to 10 seconds.
func New(port int, handler http.Handler, writeTimeout time.Duration) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       2 * time.Minute,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		cancel: cancel,
	}
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.inner.Serve(ln)
}

// Shutdown gracefully terminates the HTTP server. Requests still running when ctx expires have
// their contexts cancelled so long-running handlers can unwind before the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.inner.Shutdown(ctx)
	s.cancel()
	return err
}
