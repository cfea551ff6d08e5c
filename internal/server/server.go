package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/scms/internal/bootstrap"
	"github.com/yigit/scms/internal/config"
	"github.com/yigit/scms/internal/db"
	"github.com/yigit/scms/internal/pkg/helpers"
)

// Server holds the state for the HTTP server.
type Server struct {
	config        *config.Config
	router        *gin.Engine
	database      *db.PostgresDB
	closeDenylist func() error
	logger        zerolog.Logger
	http          *http.Server
}

// NewServer creates and initializes a new server instance by calling bootstrap functions.
func NewServer(configPath string) (*Server, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config or setup logger: %w", err)
	}

	database, store, err := bootstrap.SetupDatabase(cfg, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	denylist, closeDenylist, err := bootstrap.SetupDenylist(context.Background(), cfg, lgr)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to setup token denylist: %w", err)
	}

	deps := bootstrap.BuildDependencies(cfg, store, denylist, lgr)
	bootstrap.PrepareData(context.Background(), deps)

	return &Server{
		config:        cfg,
		router:        bootstrap.SetupRouter(cfg, deps, lgr),
		database:      database,
		closeDenylist: closeDenylist,
		logger:        lgr,
	}, nil
}

// Run starts the HTTP server and handles graceful shutdown.
func (s *Server) Run() error {
	s.logger.Info().Str("port", s.config.Server.Port).Msg("Starting server...")

	s.http = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  helpers.ParseDuration(s.config.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: helpers.ParseDuration(s.config.Server.WriteTimeout, 15*time.Second),
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
		serverErrors <- s.http.ListenAndServe()
	}()

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
	case sig := <-osSignals:
		s.logger.Info().Str("signal", sig.String()).Msg("Received OS signal, initiating shutdown...")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully stops the server and closes resources.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, helpers.ParseDuration(s.config.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()

	var errs []error

	if s.http != nil {
		s.logger.Info().Msg("Shutting down HTTP server...")
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("HTTP server shutdown error")
			errs = append(errs, err)
		} else {
			s.logger.Info().Msg("HTTP server gracefully stopped.")
		}
	}

	if s.closeDenylist != nil {
		if err := s.closeDenylist(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to close token denylist")
			errs = append(errs, err)
		}
	}

	if s.database != nil {
		s.logger.Info().Msg("Closing database connection pool...")
		s.database.Close()
	}

	s.logger.Info().Msg("Server shutdown process complete.")
	return errors.Join(errs...)
}
