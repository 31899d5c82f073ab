// Package job provides the background job channel built on Asynq.
//
// Asynq is a Redis-backed job queue:
//   - tasks are enqueued (producer) through an asynq.Client
//   - a single asynq.Server per channel runs the workers (consumer)
//   - an EventListener subscribes to lifecycle events the workers publish
//
// The three are created, started and stopped together by JobService.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrStopped is returned by Enqueue once the channel has been stopped.
var ErrStopped = errors.New("job channel stopped")

// Queue is the producer side of the channel. *asynq.Client satisfies it.
type Queue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Worker is the consumer side of the channel. *asynq.Server satisfies it.
type Worker interface {
	Start(handler asynq.Handler) error
	Ping() error
	Shutdown()
}

// Listener observes task lifecycle events. *EventListener satisfies it.
type Listener interface {
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	Close() error
}

// JobService owns the queue, worker and event listener of one named channel.
type JobService struct {
	queue     Queue
	worker    Worker
	listener  Listener
	events    eventSink
	dashboard *Dashboard

	// brokerPing checks the Redis connection the queue writes to.
	brokerPing func(ctx context.Context) error

	cfg    *config.QueueConfig
	logger *zerolog.Logger
	mux    *asynq.ServeMux

	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
}

// NewJobService builds the channel for cfg.Queue.Name on the Redis from cfg.
//
// rdb carries lifecycle events and the idempotency markers of the email
// handler; asynq keeps its own connections for the queue and the worker.
func NewJobService(logger *zerolog.Logger, cfg *config.Config, rdb redis.UniversalClient, sender EmailSender) *JobService {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	queueCfg := cfg.Queue
	channel := EventChannel(queueCfg.Name)

	worker := asynq.NewServer(redisOpt, asynq.Config{
		// One queue per channel: every worker slot serves it.
		Concurrency:     queueCfg.Concurrency,
		Queues:          map[string]int{queueCfg.Name: 1},
		ShutdownTimeout: queueCfg.TaskTimeout,
		Logger:          asynqLogger{logger: logger},
		LogLevel:        asynq.WarnLevel,
	})

	j := newJobService(
		logger,
		queueCfg,
		asynq.NewClient(redisOpt),
		worker,
		NewEventListener(rdb, channel, logger, nil),
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	)
	j.events = &eventPublisher{rdb: rdb, channel: channel, logger: logger}
	j.dashboard = NewDashboard(asynq.NewInspector(redisOpt))

	j.Handle(TaskSendEmail, &emailHandler{
		sender:   sender,
		markers:  rdb,
		dedupTTL: queueCfg.DedupTTL,
		logger:   logger,
	})

	return j
}

func newJobService(
	logger *zerolog.Logger,
	cfg *config.QueueConfig,
	queue Queue,
	worker Worker,
	listener Listener,
	brokerPing func(ctx context.Context) error,
) *JobService {
	return &JobService{
		queue:      queue,
		worker:     worker,
		listener:   listener,
		events:     nopSink{},
		brokerPing: brokerPing,
		cfg:        cfg,
		logger:     logger,
		mux:        asynq.NewServeMux(),
	}
}

// Handle registers a handler for a task type. Must be called before Start.
func (j *JobService) Handle(taskType string, handler asynq.Handler) {
	j.mux.Handle(taskType, handler)
}

// Start subscribes the event listener and starts the worker.
//
// Neither call blocks: asynq.Server.Start spawns its own goroutines.
func (j *JobService) Start(ctx context.Context) error {
	if err := j.listener.Start(ctx); err != nil {
		return fmt.Errorf("starting job event listener: %w", err)
	}

	j.mux.Use(j.lifecycleEvents)

	j.logger.Info().Str("queue", j.cfg.Name).Msg("starting background job server")

	if err := j.worker.Start(j.mux); err != nil {
		return fmt.Errorf("starting job worker: %w", err)
	}
	j.started.Store(true)

	return nil
}

// Enqueue hands a task to the queue. It returns once the task is persisted in
// Redis, never waiting for the task to run.
func (j *JobService) Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	if j.stopped.Load() {
		return nil, ErrStopped
	}

	info, err := j.queue.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	j.logger.Debug().
		Str("task_id", info.ID).
		Str("type", task.Type()).
		Str("queue", info.Queue).
		Msg("task enqueued")

	return info, nil
}

// EnqueueEmail enqueues an email:send task and returns its id.
func (j *JobService) EnqueueEmail(ctx context.Context, msg email.Message) (string, error) {
	task, err := NewEmailTask(msg, j.cfg)
	if err != nil {
		return "", err
	}

	info, err := j.Enqueue(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// Ready reports nil when the queue, the worker and the event listener are all connected.
func (j *JobService) Ready(ctx context.Context) error {
	if err := j.brokerPing(ctx); err != nil {
		return fmt.Errorf("queue not connected: %w", err)
	}

	if !j.started.Load() {
		return errors.New("worker not started")
	}
	if err := j.worker.Ping(); err != nil {
		return fmt.Errorf("worker not connected: %w", err)
	}

	select {
	case <-j.listener.Ready():
	default:
		return errors.New("event listener not subscribed")
	}

	return nil
}

// readyPollInterval is how often WaitReady re-checks the channel.
const readyPollInterval = 100 * time.Millisecond

// WaitReady blocks until Ready succeeds or ctx is done.
func (j *JobService) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		err := j.Ready(ctx)
		if err == nil {
			j.logger.Info().Str("queue", j.cfg.Name).Msg("job channel ready")
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("job channel not ready: %w", err)
		case <-ticker.C:
		}
	}
}

// Dashboard exposes queue inspection. Nil for channels built by tests.
func (j *JobService) Dashboard() *Dashboard {
	return j.dashboard
}

// Stop drains the channel. Safe to call more than once; only the first call
// does anything.
//
// The worker goes first while Redis is still reachable, then the listener,
// then the producer connection.
func (j *JobService) Stop() {
	j.stopOnce.Do(func() {
		j.stopped.Store(true)
		j.logger.Info().Str("queue", j.cfg.Name).Msg("stopping background job channel")

		if j.started.Load() {
			j.worker.Shutdown()
		}

		if err := j.listener.Close(); err != nil {
			j.logger.Warn().Err(err).Msg("failed to close job event listener")
		}

		if err := j.queue.Close(); err != nil {
			j.logger.Warn().Err(err).Msg("failed to close job queue client")
		}

		if j.dashboard != nil {
			if err := j.dashboard.Close(); err != nil {
				j.logger.Warn().Err(err).Msg("failed to close queue inspector")
			}
		}

		j.logger.Info().Msg("background job channel stopped")
	})
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct {
	logger *zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) {
	l.logger.Debug().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (l asynqLogger) Info(args ...any) {
	l.logger.Info().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (l asynqLogger) Warn(args ...any) {
	l.logger.Warn().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (l asynqLogger) Error(args ...any) {
	l.logger.Error().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

// Fatal is only used by asynq.Server.Run, which this package never calls.
func (l asynqLogger) Fatal(args ...any) {
	l.logger.Error().Str("component", "asynq").Bool("fatal", true).Msg(fmt.Sprint(args...))
}
