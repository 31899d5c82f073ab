// Package service contains the business logic.
//
// It sits between the handler and repository layers.
// It receives validated data from the handler, performs
// business operations, and calls repository methods to interact
// with the data.
//
// Services depend on the small interfaces below rather than on concrete
// repositories and clients, so they can be tested without Postgres, Redis or
// the payment gateway.
package service

import (
	"context"

	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/deppfellow/campaign-gateway/internal/lib/payment"
	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/google/uuid"
)

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) (*model.User, error)
}

type CampaignStore interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Campaign, error)
	SetPayment(ctx context.Context, id uuid.UUID, reference string, status model.CampaignStatus) (*model.Campaign, error)
}

// EmailQueue enqueues email jobs. *job.JobService satisfies it.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, msg email.Message) (string, error)
}

// PaymentGateway is the normalized payment client. *payment.Client satisfies it.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req payment.InitializeRequest) payment.Result
	VerifyTransaction(ctx context.Context, reference string) payment.Result
}
