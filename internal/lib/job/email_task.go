package job

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/hibiken/asynq"
)

const (
	// TaskSendEmail is the job type name stored in Redis.
	// Asynq uses task type strings to route to handlers.
	TaskSendEmail = "email:send"
)

// NewEmailTask constructs an Asynq task that sends msg.
//
// Retry count, queue and timeout come from the queue config so every task of
// the channel shares one policy.
func NewEmailTask(msg email.Message, cfg *config.QueueConfig) (*asynq.Task, error) {
	if msg.To == "" {
		return nil, errors.New("email task requires a recipient")
	}
	if !msg.Template.Valid() {
		return nil, fmt.Errorf("email task: unknown template %q", msg.Template)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskSendEmail,
		payload,
		asynq.MaxRetry(cfg.MaxRetry),
		asynq.Queue(cfg.Name),
		asynq.Timeout(cfg.TaskTimeout),
	), nil
}
