// Package server provides the HTTP API for training and serving role
// classifiers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/config"
	"github.com/Keshav04042001/mindmeld/internal/ingest"
	"github.com/Keshav04042001/mindmeld/internal/nlp"
	"github.com/Keshav04042001/mindmeld/internal/storage"
)

// Server is the HTTP server for the classifier API.
type Server struct {
	processor *nlp.Processor
	ingester  *ingest.Ingester
	storage   storage.Storage
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	processor *nlp.Processor,
	ingester *ingest.Ingester,
	store storage.Storage,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		processor: processor,
		ingester:  ingester,
		storage:   store,
		config:    cfg,
		logger:    logger,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.Routes(),
	}
	return s
}

// Routes builds the chi router for the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Post("/api/v1/classifiers/{domain}/{intent}/{entity}/train", s.handleTrain)
	r.Post("/api/v1/classifiers/{domain}/{intent}/{entity}/predict", s.handlePredict)
	r.Post("/api/v1/encodings", s.handleEncode)
	r.Delete("/api/v1/encodings/cache", s.handleClearCache)
	r.Post("/api/v1/ingest", s.handleIngest)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops. After a graceful
// Stop it returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and flushes the embedding cache.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.processor.Close()
}
