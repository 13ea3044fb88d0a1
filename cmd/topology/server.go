package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/artpar/fa-topology/internal/shell/api"
	"github.com/artpar/fa-topology/internal/shell/planner"
	"github.com/artpar/fa-topology/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitBlocked         = 3
	ExitHTTPServerError = 4
	ExitDiscoveryError  = 5
	ExitRuntimeError    = 6
)

// =============================================================================
// Server
// =============================================================================

// Server serves the planning API.
type Server struct {
	config     *Config
	logger     *slog.Logger
	store      store.Store
	httpServer *http.Server
}

// NewServer opens the plan history and wires the API handler.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	s, err := openStore(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info("plan history opened", "dsn", cfg.Database.DSN)

	svc := planner.NewService(s, discoverer(cfg, logger), logger)
	handler := api.NewHandler(svc, logger)

	return &Server{
		config: cfg,
		logger: logger,
		store:  s,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      handler.Routes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

// Start runs the HTTP server until a signal arrives, ctx is done, or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.closeStore()
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	s.closeStore()

	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) closeStore() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}
}

// openStore opens the plan history, creating the parent directory of a file
// DSN.
func openStore(dsn string) (*store.SQLiteStore, error) {
	if path := strings.TrimPrefix(dsn, "file:"); path != "" && !strings.HasPrefix(path, ":memory:") {
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &ServerError{Op: "OpenStore", Err: err, ExitCode: ExitDatabaseError}
		}
	}

	s, err := store.NewSQLiteStore(dsn)
	if err != nil {
		return nil, &ServerError{Op: "OpenStore", Err: err, ExitCode: ExitDatabaseError}
	}
	return s, nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during command or server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
