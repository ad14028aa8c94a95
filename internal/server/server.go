// Package server provides the HTTP API over the RAG service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/docrag/internal/config"
	"github.com/hyperjump/docrag/internal/rag"
)

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes = 32 << 20

// WatchService reports the inbox directories being watched.
type WatchService interface {
	Directories() []string
}

// SizeFunc reports the on-disk size of the document store.
type SizeFunc func() (int64, error)

// Server is the HTTP server for the docrag API.
type Server struct {
	rag     *rag.Service
	config  *config.ServerConfig
	logger  *zap.Logger
	watch   WatchService
	size    SizeFunc
	maxBody int64
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWatcher exposes the watched inbox directories at /api/v1/watch.
func WithWatcher(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// WithStoreSize adds disk usage to /api/v1/stats.
func WithStoreSize(fn SizeFunc) Option {
	return func(s *Server) { s.size = fn }
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// NewServer creates a server over svc.
func NewServer(svc *rag.Service, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		rag:     svc,
		config:  cfg,
		logger:  logger,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))
	r.Use(s.requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleIndexDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
			r.Post("/{id}/load", s.handleLoadDocument)
		})
		r.Get("/active", s.handleActiveDocument)
		r.Delete("/active", s.handleClearActive)
		r.Post("/search", s.handleSearch)
		r.Post("/context", s.handleContext)
		r.Get("/stats", s.handleStats)
		r.Get("/config", s.handleGetConfig)
		r.Patch("/config", s.handlePatchConfig)
		r.Get("/watch", s.handleWatchDirectories)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
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
