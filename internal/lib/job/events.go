package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// State is the terminal state of one task execution.
type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Event is published after every task execution.
type Event struct {
	TaskID   string    `json:"task_id"`
	Type     string    `json:"type"`
	Queue    string    `json:"queue"`
	State    State     `json:"state"`
	Error    string    `json:"error,omitempty"`
	Retried  int       `json:"retried"`
	MaxRetry int       `json:"max_retry"`
	At       time.Time `json:"at"`
}

// EventChannel is the Redis pub/sub channel carrying events of queue.
func EventChannel(queue string) string {
	return "jobs:" + queue + ":events"
}

type eventSink interface {
	publish(ev Event)
}

type nopSink struct{}

func (nopSink) publish(Event) {}

// publishTimeout bounds a single PUBLISH.
const publishTimeout = 2 * time.Second

// eventPublisher sends events on a goroutine so a slow Redis never holds a worker slot.
type eventPublisher struct {
	rdb     redis.UniversalClient
	channel string
	logger  *zerolog.Logger
}

func (p *eventPublisher) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode job event")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Str("task_id", ev.TaskID).Msg("failed to publish job event")
		}
	}()
}

// lifecycleEvents is the worker middleware emitting completed/failed events.
func (j *JobService) lifecycleEvents(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		err := next.ProcessTask(ctx, t)

		ev := Event{
			Type:  t.Type(),
			State: StateCompleted,
			At:    time.Now().UTC(),
		}
		ev.TaskID, _ = asynq.GetTaskID(ctx)
		ev.Queue, _ = asynq.GetQueueName(ctx)
		ev.Retried, _ = asynq.GetRetryCount(ctx)
		ev.MaxRetry, _ = asynq.GetMaxRetry(ctx)
		if err != nil {
			ev.State = StateFailed
			ev.Error = err.Error()
		}

		j.events.publish(ev)
		return err
	})
}

// EventListener subscribes to a channel's lifecycle events and logs them.
type EventListener struct {
	rdb     redis.UniversalClient
	channel string
	logger  *zerolog.Logger
	onEvent func(Event)

	ready chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

// NewEventListener creates a listener for channel. onEvent may be nil.
func NewEventListener(rdb redis.UniversalClient, channel string, logger *zerolog.Logger, onEvent func(Event)) *EventListener {
	return &EventListener{
		rdb:     rdb,
		channel: channel,
		logger:  logger,
		onEvent: onEvent,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start subscribes and waits for Redis to confirm the subscription.
func (l *EventListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.New("event listener closed")
	}
	if l.pubsub != nil {
		return nil
	}

	ps := l.rdb.Subscribe(ctx, l.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}

	l.pubsub = ps
	close(l.ready)
	go l.consume(ps.Channel())

	l.logger.Info().Str("channel", l.channel).Msg("job event listener subscribed")
	return nil
}

func (l *EventListener) consume(messages <-chan *redis.Message) {
	defer close(l.done)

	for msg := range messages {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			l.logger.Warn().Err(err).Msg("malformed job event")
			continue
		}

		entry := l.logger.Info()
		if ev.State == StateFailed {
			entry = l.logger.Warn().Str("error", ev.Error)
		}
		entry.
			Str("task_id", ev.TaskID).
			Str("type", ev.Type).
			Str("queue", ev.Queue).
			Int("retried", ev.Retried).
			Msgf("job %s", ev.State)

		if l.onEvent != nil {
			l.onEvent(ev)
		}
	}
}

// Ready is closed once the subscription is confirmed.
func (l *EventListener) Ready() <-chan struct{} {
	return l.ready
}

// Close unsubscribes and waits for the consumer goroutine to exit.
func (l *EventListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	ps := l.pubsub
	l.mu.Unlock()

	if ps == nil {
		return nil
	}

	err := ps.Close()
	<-l.done
	return err
}
