// Package token issues and verifies the HS256 access tokens handed out by
// the auth routes.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const emailClaim = "email"

// ErrInvalid is returned for any token that fails parsing or validation.
var ErrInvalid = errors.New("invalid token")

// Claims is the identity carried by a verified token.
type Claims struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// Service signs and verifies tokens with a shared secret.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret, issuer string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for userID valid for the configured TTL.
func (s *Service) Issue(userID uuid.UUID, email string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	tok, err := jwt.NewBuilder().
		Subject(userID.String()).
		Issuer(s.issuer).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim(emailClaim, email).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("building token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return string(signed), expiresAt, nil
}

// Verify checks signature, algorithm, issuer and time claims.
//
// The key is bound to HS256, so tokens declaring any other algorithm
// (including "none") are rejected.
func (s *Service) Verify(raw string) (*Claims, error) {
	tok, err := jwt.ParseString(raw,
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	userID, err := uuid.Parse(tok.Subject())
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalid)
	}

	claims := &Claims{UserID: userID, ExpiresAt: tok.Expiration()}
	if v, ok := tok.Get(emailClaim); ok {
		claims.Email, _ = v.(string)
	}

	return claims, nil
}
