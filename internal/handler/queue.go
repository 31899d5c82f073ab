package handler

import (
	"errors"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/lib/job"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/deppfellow/campaign-gateway/internal/validation"
	"github.com/labstack/echo/v4"
)

type ListQueuesRequest struct{}

func (r *ListQueuesRequest) Validate() error { return nil }

type ListTasksRequest struct {
	Queue string `param:"queue" json:"-" validate:"required,max=100"`
	State string `query:"state" json:"-" validate:"omitempty,oneof=pending active scheduled retry archived completed"`
	Page  int    `query:"page" json:"-" validate:"omitempty,min=1"`
	Size  int    `query:"size" json:"-" validate:"omitempty,min=1,max=100"`
}

func (r *ListTasksRequest) Validate() error {
	return validation.Struct(r)
}

type RunTaskRequest struct {
	Queue string `param:"queue" json:"-" validate:"required,max=100"`
	ID    string `param:"id" json:"-" validate:"required,max=100"`
}

func (r *RunTaskRequest) Validate() error {
	return validation.Struct(r)
}

// QueueHandler serves the job dashboard under /api/v1/queue.
type QueueHandler struct {
	Handler
	dashboard QueueDashboard
}

func NewQueueHandler(s *server.Server, dashboard QueueDashboard) *QueueHandler {
	return &QueueHandler{
		Handler:   NewHandler(s),
		dashboard: dashboard,
	}
}

func (h *QueueHandler) ListQueues(c echo.Context, _ *ListQueuesRequest) ([]job.QueueStats, error) {
	queues, err := h.dashboard.Queues()
	if err != nil {
		return nil, dashboardError(err)
	}
	return queues, nil
}

func (h *QueueHandler) ListTasks(c echo.Context, req *ListTasksRequest) ([]job.TaskSummary, error) {
	page, size := req.Page, req.Size
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = 20
	}

	tasks, err := h.dashboard.Tasks(req.Queue, req.State, page, size)
	if err != nil {
		return nil, dashboardError(err)
	}
	return tasks, nil
}

func (h *QueueHandler) RunTask(c echo.Context, req *RunTaskRequest) error {
	if err := h.dashboard.RunTask(req.Queue, req.ID); err != nil {
		return dashboardError(err)
	}
	return nil
}

func dashboardError(err error) error {
	switch {
	case errors.Is(err, job.ErrQueueNotFound):
		return errs.NewNotFoundError("Queue not found", true, nil)
	case errors.Is(err, job.ErrTaskNotFound):
		return errs.NewNotFoundError("Task not found", true, nil)
	case errors.Is(err, job.ErrUnknownState):
		return errs.NewBadRequestError("Unknown task state", true, nil, nil, nil)
	default:
		// Anything else comes from the inspector talking to Redis.
		return errs.NewServiceUnavailableError("Job queue is unavailable")
	}
}
