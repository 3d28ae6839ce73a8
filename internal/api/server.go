package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/miradorstack/mirador-guard/internal/config"
)

// Server wraps the HTTP read API with graceful shutdown.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	timeout    time.Duration
}

// NewServer builds the API server around the given handler.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger:  logger,
		timeout: cfg.GracefulTimeout,
	}
}

// Start serves until the listener closes. Blocks.
func (s *Server) Start() error {
	s.logger.Info("http api listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured graceful timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
