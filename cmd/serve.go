package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/auth"
	"github.com/Shivanand-hulikatti/event-attendance/internal/authz"
	"github.com/Shivanand-hulikatti/event-attendance/internal/config"
	"github.com/Shivanand-hulikatti/event-attendance/internal/database"
	"github.com/Shivanand-hulikatti/event-attendance/internal/handler"
	"github.com/Shivanand-hulikatti/event-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/event-attendance/internal/repository/memory"
	"github.com/Shivanand-hulikatti/event-attendance/internal/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		port        string
		autoMigrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and serve until SIGINT or SIGTERM.

Storage is chosen by STORAGE_DRIVER: "memory" keeps everything in process,
"postgres" connects using DATABASE_URL or the DB_* variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if port != "" {
				cfg.Server.Port = port
			}
			applyLogFlags(&cfg.Logging)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, autoMigrate)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default: $PORT or 8080)")
	cmd.Flags().BoolVar(&autoMigrate, "migrate", true, "apply pending migrations on start (postgres only)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, autoMigrate bool) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("storage", cfg.Storage.Driver).Msg("starting eventhub")

	store, err := openBackend(ctx, cfg, autoMigrate, logger)
	if err != nil {
		return err
	}
	defer store.close()

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
	policy := authz.Policy{AllowOwnerRSVP: cfg.Admission.AllowOwnerRSVP}
	h := handler.NewEventHandler(
		service.NewEventService(store.events, store.attendance, policy, logger),
		service.NewIdentityService(store.actors, tokens, cfg.Auth.BcryptCost, logger),
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.NewRouter(h, handler.RouterConfig{Logger: logger, AuthPerMinute: cfg.RateLimit.AuthPerMinute}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

type backend struct {
	events     service.EventRepository
	attendance service.AttendanceRepository
	actors     service.ActorRepository
	close      func()
}

func openBackend(ctx context.Context, cfg config.Config, autoMigrate bool, logger zerolog.Logger) (backend, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		store := memory.NewStore(cfg.Admission.Timeout)
		return backend{
			events:     store.Events(),
			attendance: store.Attendance(),
			actors:     store.Actors(),
			close:      func() {},
		}, nil

	case config.StoragePostgres:
		if autoMigrate {
			if err := database.MigrateUp(cfg.Database.ConnString()); err != nil {
				return backend{}, err
			}
			logger.Info().Msg("migrations applied")
		}
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return backend{}, fmt.Errorf("database: %w", err)
		}
		logger.Info().Msg("connected to PostgreSQL")
		return backend{
			events:     repository.NewEventRepository(pool),
			attendance: repository.NewAttendanceRepository(pool, cfg.Admission.Timeout),
			actors:     repository.NewActorRepository(pool),
			close:      pool.Close,
		}, nil
	}
	return backend{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
