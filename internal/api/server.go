package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/audience-pilot/internal/config"
)

// Server wraps the HTTP server.
type Server struct {
	config config.ServerConfig
	server *http.Server
}

// NewServer creates the API server around the configured handlers.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	return &Server{
		config: cfg,
		server: &http.Server{
			Handler:           SetupRoutes(h),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// ListenAndServe starts serving on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
