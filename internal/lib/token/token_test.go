package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	svc := NewService(secret, "campaign-gateway", time.Hour)
	userID := uuid.New()

	raw, expiresAt, err := svc.Issue(userID, "ada@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewService(secret, "campaign-gateway", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	raw, _, err := svc.Issue(uuid.New(), "ada@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(raw)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsForeignIssuerAndKey(t *testing.T) {
	other := NewService(secret, "someone-else", time.Hour)
	raw, _, err := other.Issue(uuid.New(), "ada@example.com")
	require.NoError(t, err)

	svc := NewService(secret, "campaign-gateway", time.Hour)
	_, err = svc.Verify(raw)
	require.ErrorIs(t, err, ErrInvalid)

	wrongKey := NewService("ffffffffffffffffffffffffffffffff", "campaign-gateway", time.Hour)
	raw, _, err = wrongKey.Issue(uuid.New(), "ada@example.com")
	require.NoError(t, err)
	_, err = svc.Verify(raw)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	svc := NewService(secret, "campaign-gateway", time.Hour)

	tok, err := jwt.NewBuilder().
		Subject("user_2abc").
		Issuer("campaign-gateway").
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(secret)))
	require.NoError(t, err)

	_, err = svc.Verify(string(signed))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewService(secret, "campaign-gateway", time.Hour)
	_, err := svc.Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalid)
}
