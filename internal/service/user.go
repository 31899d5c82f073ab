package service

import (
	"context"

	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/google/uuid"
)

type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) UpdateName(ctx context.Context, id uuid.UUID, name string) (*model.User, error) {
	return s.users.UpdateName(ctx, id, name)
}
