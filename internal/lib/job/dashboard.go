package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

var (
	// ErrQueueNotFound and ErrTaskNotFound are returned for unknown ids.
	ErrQueueNotFound = asynq.ErrQueueNotFound
	ErrTaskNotFound  = asynq.ErrTaskNotFound

	// ErrUnknownState is returned for a task state the dashboard cannot list.
	ErrUnknownState = errors.New("unknown task state")
)

// Dashboard is the read-mostly view over the queues served at /api/v1/queue.
type Dashboard struct {
	inspector *asynq.Inspector
}

func NewDashboard(inspector *asynq.Inspector) *Dashboard {
	return &Dashboard{inspector: inspector}
}

// QueueStats is a point-in-time snapshot of one queue.
type QueueStats struct {
	Queue     string    `json:"queue"`
	Size      int       `json:"size"`
	Pending   int       `json:"pending"`
	Active    int       `json:"active"`
	Scheduled int       `json:"scheduled"`
	Retry     int       `json:"retry"`
	Archived  int       `json:"archived"`
	Completed int       `json:"completed"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Paused    bool      `json:"paused"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskSummary is a task as listed by the dashboard.
type TaskSummary struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Queue         string          `json:"queue"`
	State         string          `json:"state"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Retried       int             `json:"retried"`
	MaxRetry      int             `json:"max_retry"`
	LastError     string          `json:"last_error,omitempty"`
	NextProcessAt *time.Time      `json:"next_process_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// Queues returns stats for every queue known to Redis.
func (d *Dashboard) Queues() ([]QueueStats, error) {
	names, err := d.inspector.Queues()
	if err != nil {
		return nil, fmt.Errorf("listing queues: %w", err)
	}

	stats := make([]QueueStats, 0, len(names))
	for _, name := range names {
		info, err := d.inspector.GetQueueInfo(name)
		if err != nil {
			return nil, fmt.Errorf("inspecting queue %s: %w", name, err)
		}
		stats = append(stats, QueueStats{
			Queue:     info.Queue,
			Size:      info.Size,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Completed: info.Completed,
			Processed: info.Processed,
			Failed:    info.Failed,
			Paused:    info.Paused,
			Timestamp: info.Timestamp,
		})
	}
	return stats, nil
}

// Tasks lists tasks of queue in state. page starts at 1.
func (d *Dashboard) Tasks(queue, state string, page, size int) ([]TaskSummary, error) {
	opts := []asynq.ListOption{asynq.Page(page), asynq.PageSize(size)}

	var (
		infos []*asynq.TaskInfo
		err   error
	)
	switch state {
	case "", "pending":
		infos, err = d.inspector.ListPendingTasks(queue, opts...)
	case "active":
		infos, err = d.inspector.ListActiveTasks(queue, opts...)
	case "scheduled":
		infos, err = d.inspector.ListScheduledTasks(queue, opts...)
	case "retry":
		infos, err = d.inspector.ListRetryTasks(queue, opts...)
	case "archived":
		infos, err = d.inspector.ListArchivedTasks(queue, opts...)
	case "completed":
		infos, err = d.inspector.ListCompletedTasks(queue, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	if err != nil {
		return nil, err
	}

	tasks := make([]TaskSummary, 0, len(infos))
	for _, info := range infos {
		tasks = append(tasks, summarize(info))
	}
	return tasks, nil
}

// RunTask moves a scheduled, retry or archived task to pending.
func (d *Dashboard) RunTask(queue, id string) error {
	return d.inspector.RunTask(queue, id)
}

func (d *Dashboard) Close() error {
	return d.inspector.Close()
}

func summarize(info *asynq.TaskInfo) TaskSummary {
	s := TaskSummary{
		ID:        info.ID,
		Type:      info.Type,
		Queue:     info.Queue,
		State:     info.State.String(),
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
		LastError: info.LastErr,
	}
	if json.Valid(info.Payload) {
		s.Payload = info.Payload
	}
	if !info.NextProcessAt.IsZero() {
		t := info.NextProcessAt
		s.NextProcessAt = &t
	}
	if !info.CompletedAt.IsZero() {
		t := info.CompletedAt
		s.CompletedAt = &t
	}
	return s
}
