package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/lib/token"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/labstack/echo/v4"
)

// TokenVerifier verifies the locally issued access tokens.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// clerkClaims are the custom claims read from a Clerk session token.
// external_id links the Clerk user to a row in users.
type clerkClaims struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
}

// AuthMiddleware guards protected routes.
type AuthMiddleware struct {
	server *server.Server
	tokens TokenVerifier
	clerk  bool
}

func NewAuthMiddleware(s *server.Server, tokens TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
		tokens: tokens,
		clerk:  s.Config.Auth.ClerkEnabled(),
	}
}

// RequireAuth rejects unauthenticated requests with 401 before the handler
// runs.
//
// The bearer token is first verified as a local HS256 token. When Clerk is
// configured and local verification fails, the request is handed to Clerk's
// header middleware instead.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	var viaClerk echo.HandlerFunc
	if auth.clerk {
		viaClerk = auth.clerkAuth(next)
	}

	return func(c echo.Context) error {
		start := time.Now()

		raw, ok := bearerToken(c.Request())
		if !ok {
			GetLogger(c).Warn().
				Str("function", "RequireAuth").
				Dur("duration", time.Since(start)).
				Msg("missing bearer token")
			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		claims, err := auth.tokens.Verify(raw)
		if err == nil {
			return auth.authenticated(c, claims.UserID.String(), claims.Email, start, next)
		}

		if viaClerk != nil {
			return viaClerk(c)
		}

		GetLogger(c).Warn().
			Err(err).
			Str("function", "RequireAuth").
			Dur("duration", time.Since(start)).
			Msg("token verification failed")

		return errs.NewUnauthorizedError("Unauthorized", false)
	}
}

// clerkAuth wraps Clerk's net/http middleware. Clerk writes the 401 itself on
// failure, so the response is built from the same HTTPError shape.
func (auth *AuthMiddleware) clerkAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return echo.WrapMiddleware(
		clerkhttp.WithHeaderAuthorization(
			clerkhttp.CustomClaimsConstructor(func(context.Context) any {
				return &clerkClaims{}
			}),
			clerkhttp.AuthorizationFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
				w.WriteHeader(http.StatusUnauthorized)

				if err := json.NewEncoder(w).Encode(errs.NewUnauthorizedError("Unauthorized", false)); err != nil {
					auth.server.Logger.Error().
						Err(err).
						Str("function", "RequireAuth").
						Msg("failed to write JSON response")
					return
				}

				auth.server.Logger.Warn().
					Str("function", "RequireAuth").
					Str("path", r.URL.Path).
					Msg("clerk session verification failed")
			}))))(
		func(c echo.Context) error {
			start := time.Now()

			claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
			if !ok {
				GetLogger(c).Error().
					Str("function", "RequireAuth").
					Msg("could not get session claims from context")
				return errs.NewUnauthorizedError("Unauthorized", false)
			}

			custom, _ := claims.Custom.(*clerkClaims)
			if custom == nil || custom.ExternalID == "" {
				GetLogger(c).Warn().
					Str("function", "RequireAuth").
					Str("clerk_subject", claims.Subject).
					Msg("clerk session is not linked to a user")
				return errs.NewUnauthorizedError("Unauthorized", false)
			}

			return auth.authenticated(c, custom.ExternalID, custom.Email, start, next)
		})
}

func (auth *AuthMiddleware) authenticated(c echo.Context, userID, email string, start time.Time, next echo.HandlerFunc) error {
	c.Set(UserIDKey, userID)
	c.Set(UserEmailKey, email)

	l := GetLogger(c).With().Str("user_id", userID).Logger()
	setLogger(c, &l)

	l.Debug().
		Str("function", "RequireAuth").
		Dur("duration", time.Since(start)).
		Msg("user authenticated successfully")

	return next(c)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(echo.HeaderAuthorization)
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
