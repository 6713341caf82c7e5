// Package server provides the HTTP API for helpmate.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/chat"
	"github.com/hyperjump/helpmate/internal/config"
	"github.com/hyperjump/helpmate/internal/storage"
	"github.com/hyperjump/helpmate/internal/vector"
)

// catalogTimeout bounds the JSON catalog endpoints. Chat replies stream and are not bounded.
const catalogTimeout = 30 * time.Second

// Server is the HTTP server for the helpmate API.
type Server struct {
	assistant *chat.Assistant
	storage   storage.Storage
	vectors   *vector.Store
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	assistant *chat.Assistant,
	store storage.Storage,
	vectors *vector.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		assistant: assistant,
		storage:   store,
		vectors:   vectors,
		config:    cfg,
		logger:    logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/chat", s.handleChat)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(catalogTimeout))
		r.Use(middleware.Compress(5))
		r.Get("/api/helpers", s.handleListHelpers)
		r.Get("/api/helpers/{id}", s.handleGetHelper)
		r.Get("/api/health", s.handleHealth)
		r.Get("/api/knowledge/status", s.handleKnowledgeStatus)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
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
