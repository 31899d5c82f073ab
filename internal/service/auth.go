package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/deppfellow/campaign-gateway/internal/lib/token"
	"github.com/deppfellow/campaign-gateway/internal/logger"
	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AuthResult is returned by register and login.
type AuthResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type AuthService struct {
	users  UserStore
	tokens *token.Service
	emails EmailQueue
	params *argon2id.Params
	logger *zerolog.Logger
}

// NewAuthService also registers the Clerk API key when Clerk tokens are accepted.
func NewAuthService(cfg *config.Config, users UserStore, tokens *token.Service, emails EmailQueue, logger *zerolog.Logger) *AuthService {
	if cfg.Auth.ClerkEnabled() {
		clerk.SetKey(cfg.Auth.ClerkSecretKey)
	}

	return &AuthService{
		users:  users,
		tokens: tokens,
		emails: emails,
		params: argon2id.DefaultParams,
		logger: logger,
	}
}

var errInvalidCredentials = errs.NewUnauthorizedError("Invalid email or password", true)

// Register creates the user and queues the welcome email.
//
// A failed enqueue is logged; the registration still succeeds.
func (s *AuthService) Register(ctx context.Context, name, emailAddr, password string) (*AuthResult, error) {
	emailAddr = normalizeEmail(emailAddr)

	hash, err := argon2id.CreateHash(password, s.params)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, name, emailAddr, hash)
	if err != nil {
		return nil, err
	}

	if _, err := s.emails.EnqueueEmail(ctx, email.WelcomeMessage(user.Email, user.Name)); err != nil {
		logger.FromContext(ctx, s.logger).Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to enqueue welcome email")
	}

	return s.issue(user)
}

// Login verifies the password. Unknown email and wrong password answer the same.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	match, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, errInvalidCredentials
	}

	return s.issue(user)
}

// normalizeEmail is the one spelling of an address used for storage and lookup.
func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	signed, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: signed, ExpiresAt: expiresAt}, nil
}
