// Package server hosts the reasoning backend's HTTP API: CV uploads feed the
// ingest pipeline, and action requests run the planner over a submitted page
// snapshot. The page-driving side never shares a process with this API; all
// it ever sees is the JSON contract in api/schemas.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

// Config carries the listener settings.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	// MaxUploadBytes bounds the multipart CV upload size.
	MaxUploadBytes int64
}

// Server wires the HTTP surface over the planner and the ingest pipeline.
type Server struct {
	cfg      Config
	planner  schemas.ActionPlanner
	ingestor schemas.Ingestor
	log      *zap.Logger

	httpServer *http.Server
}

// New builds the server. Zero config values fall back to defaults.
func New(cfg Config, planner schemas.ActionPlanner, ingestor schemas.Ingestor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.RequestTimeout <= 0 {
		// Planning fans out one LLM call per form field; generous by intent.
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Server{
		cfg:      cfg,
		planner:  planner,
		ingestor: ingestor,
		log:      logger.Named("server"),
	}
}

// Handler assembles the chi router. Exposed separately from Run so tests can
// drive it through httptest without a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/actions", s.handleGenerateActions)
		r.Post("/upload", s.handleUpload)
	})
	return r
}

// Run serves until the context is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Backend API listening", zap.String("address", s.cfg.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.log.Info("Shutting down backend API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP server shutdown error", zap.Error(err))
			return err
		}
		return nil
	}
}
