package handler

import (
	"context"

	"github.com/deppfellow/campaign-gateway/internal/lib/job"
	"github.com/deppfellow/campaign-gateway/internal/lib/payment"
	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/deppfellow/campaign-gateway/internal/service"
	"github.com/google/uuid"
)

// AuthService registers and logs users in.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
}

// UserService reads and updates the current user.
type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) (*model.User, error)
}

// CampaignService manages campaigns and their payment.
type CampaignService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in service.CreateCampaignInput) (*model.Campaign, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Campaign, error)
	Pay(ctx context.Context, ownerID, id uuid.UUID) (payment.Result, error)
	VerifyPayment(ctx context.Context, ownerID, id uuid.UUID, reference string) (payment.Result, error)
}

// QueueDashboard is the read/run view over the job queues.
type QueueDashboard interface {
	Queues() ([]job.QueueStats, error)
	Tasks(queue, state string, page, size int) ([]job.TaskSummary, error)
	RunTask(queue, id string) error
}

// Handlers groups all HTTP handlers so the router receives one value.
type Handlers struct {
	System   *SystemHandler
	Health   *HealthHandler
	OpenAPI  *OpenAPIHandler
	Auth     *AuthHandler
	User     *UserHandler
	Campaign *CampaignHandler
	Queue    *QueueHandler
}

// NewHandlers constructs the handler container.
func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		System:   NewSystemHandler(s),
		Health:   NewHealthHandler(s),
		OpenAPI:  NewOpenAPIHandler(s),
		Auth:     NewAuthHandler(s, services.Auth),
		User:     NewUserHandler(s, services.User),
		Campaign: NewCampaignHandler(s, services.Campaign),
		Queue:    NewQueueHandler(s, s.Job.Dashboard()),
	}
}
