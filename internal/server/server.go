// Package server defines the core Server struct that composes the app's main dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - database pool
//   - redis client
//   - the background job channel (asynq queue, worker, event listener)
//   - the payment gateway client
//   - http.Server
//
// The Supervisor in this package decides when and in which order those are torn down.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/deppfellow/campaign-gateway/internal/database"
	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/deppfellow/campaign-gateway/internal/lib/job"
	"github.com/deppfellow/campaign-gateway/internal/lib/payment"
	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	loggerPkg "github.com/deppfellow/campaign-gateway/internal/logger"
)

// RedisPingTimeout bounds the startup Redis check.
const RedisPingTimeout = 5 * time.Second

// Server is the application container that holds shared resources.
//
// It is not the HTTP server itself; that is httpServer, configured by
// SetupHTTPServer.
type Server struct {
	Config        *config.Config
	Logger        *zerolog.Logger
	LoggerService *loggerPkg.LoggerService

	DB    *database.Database
	Redis *redis.Client

	// Job is the background job channel. It is built here but started by the
	// caller so boot can decide when to wait for readiness.
	Job *job.JobService

	Payment *payment.Client

	httpServer *http.Server
	listener   net.Listener
}

// New constructs a Server and initializes core dependencies.
//
// It does NOT start the HTTP server or the job worker.
//
// Failures here are startup failures: a missing database, an unreachable
// Redis (the job channel needs it) or an incomplete payment configuration
// all stop the process.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	payments, err := payment.NewClient(&cfg.Integration, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment client: %w", err)
	}

	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), RedisPingTimeout)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	jobService := job.NewJobService(logger, cfg, redisClient, email.NewClient(cfg, logger))

	return &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Redis:         redisClient,
		Job:           jobService,
		Payment:       payments,
	}, nil
}

// SetupHTTPServer configures the internal net/http server around handler.
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Listen binds the configured port. Split from Serve so a bind failure is
// reported synchronously at boot.
func (s *Server) Listen() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until the listener is closed. A graceful stop
// returns nil.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("HTTP listener not bound")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Msg("starting server")

	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StopHTTP stops accepting connections and waits for in-flight requests until ctx is done.
func (s *Server) StopHTTP(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// Close releases the connections that outlive the job channel: the database
// pool, Redis and the telemetry agent. Call after the job channel is stopped.
func (s *Server) Close() error {
	var errList []error

	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errList = append(errList, fmt.Errorf("failed to close database connection: %w", err))
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errList = append(errList, fmt.Errorf("failed to close redis connection: %w", err))
		}
	}
	s.LoggerService.Shutdown()

	return errors.Join(errList...)
}
