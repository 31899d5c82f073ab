package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EmailSender delivers a rendered email. *email.Client satisfies it.
type EmailSender interface {
	SendEmail(ctx context.Context, msg email.Message) error
}

// sentMarkerPrefix keys the "already delivered" marker of an email task.
const sentMarkerPrefix = "email:sent:"

// emailHandler processes email:send tasks.
//
// Asynq delivers at least once: a worker crash after the provider accepted the
// email but before the task is acked replays it. The sent marker turns that
// replay into a no-op.
type emailHandler struct {
	sender   EmailSender
	markers  redis.Cmdable
	dedupTTL time.Duration
	logger   *zerolog.Logger
}

func (h *emailHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var msg email.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		// A malformed payload never becomes valid, retrying is pointless.
		return fmt.Errorf("failed to unmarshal email payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	return h.send(ctx, taskID, msg)
}

func (h *emailHandler) send(ctx context.Context, taskID string, msg email.Message) error {
	log := h.logger.With().
		Str("task_id", taskID).
		Str("template", string(msg.Template)).
		Str("to", msg.To).
		Logger()

	key := sentMarkerPrefix + taskID
	if taskID != "" {
		n, err := h.markers.Exists(ctx, key).Result()
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("could not read email sent marker, sending anyway")
		case n > 0:
			log.Info().Msg("email already sent for this task, skipping")
			return nil
		}
	}

	log.Info().Msg("processing email task")

	if err := h.sender.SendEmail(ctx, msg); err != nil {
		log.Error().Err(err).Msg("failed to send email")
		return err // returning err makes Asynq mark it failed and schedule retry
	}

	if taskID != "" {
		if err := h.markers.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), h.dedupTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("failed to record email sent marker")
		}
	}

	log.Info().Msg("successfully sent email")
	return nil
}
