package service

import (
	"github.com/deppfellow/campaign-gateway/internal/lib/token"
	"github.com/deppfellow/campaign-gateway/internal/repository"
	"github.com/deppfellow/campaign-gateway/internal/server"
)

type Services struct {
	Auth     *AuthService
	User     *UserService
	Campaign *CampaignService
	Tokens   *token.Service
}

func NewServices(s *server.Server, repos *repository.Repositories) (*Services, error) {
	tokens := token.NewService(s.Config.Auth.SecretKey, s.Config.Auth.Issuer, s.Config.Auth.TokenTTL)

	return &Services{
		Auth:     NewAuthService(s.Config, repos.Users, tokens, s.Job, s.Logger),
		User:     NewUserService(repos.Users),
		Campaign: NewCampaignService(repos.Campaigns, repos.Users, s.Job, s.Payment, s.Logger),
		Tokens:   tokens,
	}, nil
}
