package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/deppfellow/campaign-gateway/internal/lib/payment"
	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errDuplicateEmail = errors.New("duplicate email")

type memoryUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[uuid.UUID]*model.User{}}
}

func (m *memoryUsers) Create(_ context.Context, name, emailAddr, hash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == emailAddr {
			return nil, errDuplicateEmail
		}
	}
	u := &model.User{ID: uuid.New(), Name: name, Email: emailAddr, PasswordHash: hash, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("table:users: %w", pgx.ErrNoRows)
}

func (m *memoryUsers) GetByEmail(_ context.Context, emailAddr string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == emailAddr {
			return u, nil
		}
	}
	return nil, fmt.Errorf("table:users: %w", pgx.ErrNoRows)
}

func (m *memoryUsers) UpdateName(ctx context.Context, id uuid.UUID, name string) (*model.User, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = name
	return u, nil
}

type memoryCampaigns struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*model.Campaign
}

func newMemoryCampaigns() *memoryCampaigns {
	return &memoryCampaigns{campaigns: map[uuid.UUID]*model.Campaign{}}
}

func (m *memoryCampaigns) Create(_ context.Context, c *model.Campaign) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := *c
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	m.campaigns[created.ID] = &created
	return &created, nil
}

func (m *memoryCampaigns) GetForOwner(_ context.Context, id, ownerID uuid.UUID) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.campaigns[id]; ok && c.OwnerID == ownerID {
		return c, nil
	}
	return nil, fmt.Errorf("table:campaigns: %w", pgx.ErrNoRows)
}

func (m *memoryCampaigns) SetPayment(_ context.Context, id uuid.UUID, reference string, status model.CampaignStatus) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("table:campaigns: %w", pgx.ErrNoRows)
	}
	c.PaymentReference = &reference
	c.Status = status
	return c, nil
}

type recordingQueue struct {
	messages []email.Message
	err      error
}

func (q *recordingQueue) EnqueueEmail(_ context.Context, msg email.Message) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.messages = append(q.messages, msg)
	return fmt.Sprintf("task-%d", len(q.messages)), nil
}

type stubGateway struct {
	initialize payment.Result
	verify     payment.Result
	lastInit   payment.InitializeRequest
	lastRef    string
}

func (g *stubGateway) InitializeTransaction(_ context.Context, req payment.InitializeRequest) payment.Result {
	g.lastInit = req
	return g.initialize
}

func (g *stubGateway) VerifyTransaction(_ context.Context, reference string) payment.Result {
	g.lastRef = reference
	return g.verify
}
