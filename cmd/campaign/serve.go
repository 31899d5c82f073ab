package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/deppfellow/campaign-gateway/internal/database"
	"github.com/deppfellow/campaign-gateway/internal/handler"
	"github.com/deppfellow/campaign-gateway/internal/logger"
	"github.com/deppfellow/campaign-gateway/internal/middleware"
	"github.com/deppfellow/campaign-gateway/internal/repository"
	"github.com/deppfellow/campaign-gateway/internal/router"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/deppfellow/campaign-gateway/internal/service"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations, start the job channel and serve HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	loggerService := logger.NewLoggerService(cfg.Observability)
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	s, err := server.New(cfg, &log, loggerService)
	if err != nil {
		loggerService.Shutdown()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, &log, cfg); err != nil {
		_ = s.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	repos := repository.NewRepositories(s.DB.Pool)

	services, err := service.NewServices(s, repos)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("could not create services: %w", err)
	}

	mw := middleware.NewMiddlewares(s, services.Tokens)
	handlers := handler.NewHandlers(s, services)
	r := router.NewRouter(s, handlers, mw)

	s.SetupHTTPServer(r)
	if err := s.Listen(); err != nil {
		_ = s.Close()
		return err
	}

	sup := server.NewSupervisor(s, s.Job, &log, cfg.Server.ShutdownTimeout)
	defer sup.RecoverPanic()

	sup.Go("http server", s.Serve)

	if err := s.Job.Start(ctx); err != nil {
		sup.OnFatal(server.FaultUnhandled, fmt.Errorf("failed to start job channel: %w", err))
		return err
	}

	sup.Go("job channel readiness", func() error {
		readyCtx, cancel := context.WithTimeout(ctx, cfg.Queue.ReadyTimeout)
		defer cancel()

		if err := s.Job.WaitReady(readyCtx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := sup.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if err := s.Close(); err != nil {
		log.Error().Err(err).Msg("failed to release resources")
	}

	log.Info().Msg("server exited properly")
	return nil
}
