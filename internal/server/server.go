// Package server provides the HTTP API for the retrieval service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/config"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/retrieval"
)

// Server is the HTTP server fronting the Retrieval Orchestrator (C12).
type Server struct {
	orchestrator *retrieval.Orchestrator
	config       *config.ServerConfig
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(orchestrator *retrieval.Orchestrator, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{orchestrator: orchestrator, config: cfg, logger: logger}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{Addr: addr, Handler: r}
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
