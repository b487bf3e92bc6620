// Package server provides the HTTP API for kindred.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kindred/internal/config"
	"github.com/hyperjump/kindred/internal/service"
)

// Server is the HTTP server for the kindred API.
type Server struct {
	service           *service.Service
	partitionQuestion string
	metrics           http.Handler
	config            *config.ServerConfig
	logger            *zap.Logger
	server            *http.Server
}

// NewServer creates a server. partitionQuestion names the survey question whose answer picks the partition
// when a registration does not name one. metrics may be nil to disable /metrics.
func NewServer(
	svc *service.Service,
	partitionQuestion string,
	metrics http.Handler,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service:           svc,
		partitionQuestion: partitionQuestion,
		metrics:           metrics,
		config:            cfg,
		logger:            logger,
	}
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/user/register", s.handleRegister)
	r.Post("/matches", s.handleMatches)
	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/users/{rollno}/submissions", s.handleUserSubmissions)
	r.Get("/api/v1/submissions/{id}", s.handleSubmission)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
