package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/docspeak-go/internal/artifact"
	"github.com/dgnsrekt/docspeak-go/internal/config"
	"github.com/dgnsrekt/docspeak-go/internal/metrics"
	"github.com/dgnsrekt/docspeak-go/internal/pipeline"
)

// multipartSlack is the room allowed above the upload ceiling for multipart
// boundaries, headers and the language field.
const multipartSlack = 1 << 20

// Converter is the document-to-speech core the server exposes.
type Converter interface {
	Convert(ctx context.Context, req pipeline.UploadRequest) (*pipeline.Result, error)
	Fetch(id string) (*artifact.Delivery, error)
	Stat(id string) (artifact.Ref, time.Time, error)
	Limits() pipeline.Limits
}

// Server handles HTTP API requests.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	converter Converter
	metrics   *metrics.Metrics
}

// New creates a new API server. m may be nil, which disables /metrics.
func New(cfg *config.Config, logger *slog.Logger, converter Converter, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		converter: converter,
		metrics:   m,
	}

	uploadCap := converter.Limits().MaxUploadBytes + multipartSlack

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("POST /v1/convert", s.withBodyLimit(uploadCap, s.handleConvert))
	mux.HandleFunc("GET /v1/audio/{id}", s.handleAudio)
	// GET patterns also match HEAD; a HEAD must not consume the download
	mux.HandleFunc("HEAD /v1/audio/{id}", s.handleAudioHead)
	mux.HandleFunc("POST /v1/language/{lang}", s.handleLanguage)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           s.withLogging(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// synthesis happens before the first byte is written
		WriteTimeout: cfg.SynthesisTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
