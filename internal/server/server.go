// Package server assembles the remote store HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iudanet/outreach/internal/server/handlers"
	"github.com/iudanet/outreach/internal/server/jwt"
	"github.com/iudanet/outreach/internal/server/middleware"
	"github.com/iudanet/outreach/internal/server/storage/sqlite"
	"github.com/iudanet/outreach/pkg/api"
)

// Options configure the HTTP server
type Options struct {
	Addr            string
	Version         string
	AuthRateLimit   int
	AuthRateWindow  time.Duration
	ShutdownTimeout time.Duration
}

// Server is the remote store: auth plus per-collection documents over HTTP
type Server struct {
	httpServer *http.Server
	limiter    *middleware.RateLimiter
	logger     *slog.Logger
	opts       Options
}

// New wires handlers and middleware around the storage
func New(store *sqlite.Storage, tokens *jwt.Service, opts Options, logger *slog.Logger) *Server {
	limiter := middleware.NewRateLimiter(opts.AuthRateLimit, opts.AuthRateWindow, logger)

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(store, tokens, limiter, opts.Version, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		limiter: limiter,
		logger:  logger,
		opts:    opts,
	}
}

// NewRouter builds the route table. limiter may be nil.
func NewRouter(store *sqlite.Storage, tokens *jwt.Service, limiter *middleware.RateLimiter, version string, logger *slog.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(logger, store, tokens)
	healthHandler := handlers.NewHealthHandler(logger, store, version)
	docHandler := handlers.NewDocumentHandler(logger, store)

	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger, api.PathHealth))

	r.HandleFunc(api.PathHealth, healthHandler.Health).Methods(http.MethodGet)

	authRoutes := r.NewRoute().Subrouter()
	if limiter != nil {
		authRoutes.Use(limiter.Middleware)
	}
	authRoutes.HandleFunc(api.PathRegister, authHandler.Register).Methods(http.MethodPost)
	authRoutes.HandleFunc(api.PathLogin, authHandler.Login).Methods(http.MethodPost)

	docs := r.PathPrefix(api.PathCollections).Subrouter()
	docs.Use(middleware.AuthMiddleware(logger, tokens))
	docs.HandleFunc("/{collection}", docHandler.List).Methods(http.MethodGet)
	docs.HandleFunc("/{collection}/{id}", docHandler.Get).Methods(http.MethodGet)
	docs.HandleFunc("/{collection}/{id}", docHandler.Put).Methods(http.MethodPut)
	docs.HandleFunc("/{collection}/{id}", docHandler.Delete).Methods(http.MethodDelete)

	return r
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go s.limiter.Run(limiterCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", s.opts.Addr, "version", s.opts.Version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
