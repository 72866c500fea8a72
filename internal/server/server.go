// Package server wires the operations API: router, middleware and the
// HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/chuikova-e/nutritioner-bot/internal/auth"
	"github.com/chuikova-e/nutritioner-bot/internal/handler"
	"github.com/chuikova-e/nutritioner-bot/internal/middleware"
)

type Config struct {
	Addr           string
	JWTSecret      string
	AllowedOrigins []string
}

type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New builds the router. The ledger is owned by the caller and is not closed
// on shutdown.
func New(cfg Config, reports handler.Reports, db handler.Pinger, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(tokens, handler.NewOpsHandler(reports, db, logger))
	return s, nil
}

// GET  /healthz
// GET  /api/users/{handle}/today
// GET  /api/users/{handle}/weight?limit=N
// GET  /api/users/{handle}/goals
func (s *Server) setupRoutes(tokens *auth.TokenService, ops *handler.OpsHandler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(middleware.CORS(s.config.AllowedOrigins))
	}

	s.router.Get("/healthz", ops.HandleHealth)

	s.router.Route("/api/users/{handle}", func(r chi.Router) {
		r.Use(auth.RequireBearer(tokens))
		r.Get("/today", ops.HandleToday)
		r.Get("/weight", ops.HandleWeight)
		r.Get("/goals", ops.HandleGoals)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to ten seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("ops api listening", slog.String("addr", s.config.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: graceful shutdown failed: %w", err)
	}
	s.logger.Info("ops api stopped")
	return nil
}
