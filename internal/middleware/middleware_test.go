package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/deppfellow/campaign-gateway/internal/lib/token"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	claims *token.Claims
}

func (v stubVerifier) Verify(raw string) (*token.Claims, error) {
	if v.claims == nil || raw != "good-token" {
		return nil, token.ErrInvalid
	}
	return v.claims, nil
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	l := zerolog.Nop()
	return &server.Server{
		Config: &config.Config{
			Primary: config.Primary{Env: "test", AppName: "campaign-gateway"},
			Server: config.ServerConfig{
				CORSAllowedOrigins:    []string{"*"},
				BodyLimit:             "1K",
				RequestTimeout:        time.Second,
				HPPWhitelist:          []string{"date"},
				ContentSecurityPolicy: "default-src 'self'",
				RateLimitPerSecond:    100,
			},
		},
		Logger: &l,
	}
}

func newTestEcho(t *testing.T, s *server.Server, verifier TokenVerifier) (*echo.Echo, *Middlewares) {
	t.Helper()

	mw := NewMiddlewares(s, verifier)
	e := echo.New()
	mw.Apply(e, mw.Pipeline())

	e.POST("/echo", func(c echo.Context) error {
		var body map[string]any
		if err := c.Bind(&body); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, body)
	})
	e.GET("/query", func(c echo.Context) error {
		return c.JSON(http.StatusOK, c.QueryParams())
	})
	e.GET("/items/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	})

	return e, mw
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPipelineOrder(t *testing.T) {
	mw := NewMiddlewares(newTestServer(t), stubVerifier{})

	assert.Equal(t, []string{
		"newrelic",
		"recover",
		"secure-headers",
		"cors",
		"body-limit",
		"sanitize",
		"hpp",
		"csp",
		"request-id",
		"request-logger",
		"request-context",
		"tracing-attributes",
		"validate-body",
		"timeout",
	}, StageNames(mw.Pipeline()))
}

func TestSanitizeBody(t *testing.T) {
	e, _ := newTestEcho(t, newTestServer(t), stubVerifier{})

	body := `{"name":"<b>Bob</b>","bio":"plain & simple","$where":"1","a.b":1,"nested":{"$gt":1,"ok":"<script>x</script>fine"},"tags":["<i>go</i>"],"n":12.5}`
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decodeBody(t, rec)
	assert.Equal(t, "Bob", out["name"])
	assert.Equal(t, "plain & simple", out["bio"])
	assert.NotContains(t, out, "$where")
	assert.NotContains(t, out, "a.b")
	assert.Equal(t, 12.5, out["n"])

	nested := out["nested"].(map[string]any)
	assert.NotContains(t, nested, "$gt")
	assert.NotContains(t, nested["ok"], "<script>")
	assert.Contains(t, nested["ok"], "fine")

	assert.Equal(t, []any{"go"}, out["tags"])
}

func TestSanitizeQueryAndParams(t *testing.T) {
	e, _ := newTestEcho(t, newTestServer(t), stubVerifier{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/query?q=%3Cb%3Ehi%3C%2Fb%3E&%24ne=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var query map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &query))
	assert.Equal(t, []string{"hi"}, query["q"])
	assert.NotContains(t, query, "$ne")

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/items/%3Cb%3E42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())
}

func TestParameterPollution(t *testing.T) {
	e, _ := newTestEcho(t, newTestServer(t), stubVerifier{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/query?sort=asc&sort=desc&date=2024-01-01&date=2024-02-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var query map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &query))
	assert.Equal(t, []string{"desc"}, query["sort"])
	assert.Equal(t, []string{"2024-01-01", "2024-02-01"}, query["date"])
}

func TestBodyLimit(t *testing.T) {
	e, _ := newTestEcho(t, newTestServer(t), stubVerifier{})

	body := fmt.Sprintf(`{"name":%q}`, strings.Repeat("a", 4096))
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := serve(e, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	out := decodeBody(t, rec)
	assert.Equal(t, float64(http.StatusRequestEntityTooLarge), out["status"])
}

func TestValidateJSONBody(t *testing.T) {
	e, _ := newTestEcho(t, newTestServer(t), stubVerifier{})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("name=bob"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

	rec := serve(e, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	// Empty bodies are not checked.
	req = httptest.NewRequest(http.MethodPost, "/echo", nil)
	rec = serve(e, req)
	assert.NotEqual(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	e, _ := newTestEcho(t, newTestServer(t), stubVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := serve(e, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/query", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec = serve(e, req)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestSecurityHeaders(t *testing.T) {
	e, _ := newTestEcho(t, newTestServer(t), stubVerifier{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/query", nil))
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "default-src 'self'", rec.Header().Get(echo.HeaderContentSecurityPolicy))
}

func TestErrorHandler(t *testing.T) {
	e, _ := newTestEcho(t, newTestServer(t), stubVerifier{})

	e.GET("/boom", func(c echo.Context) error { return errors.New("connection reset by peer") })
	e.GET("/missing-user", func(c echo.Context) error { return fmt.Errorf("table:users: %w", pgx.ErrNoRows) })
	e.GET("/panic", func(c echo.Context) error { panic("kaboom") })

	t.Run("unknown route", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, map[string]any{"status": "error", "message": "Invalid endpoint"}, decodeBody(t, rec))
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
		assert.Equal(t, "Internal Server Error", decodeBody(t, rec)["message"])
	})

	t.Run("no rows", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/missing-user", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", decodeBody(t, rec)["message"])
	})

	t.Run("panic", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestTimeout(t *testing.T) {
	s := newTestServer(t)
	s.Config.Server.RequestTimeout = 20 * time.Millisecond
	e, _ := newTestEcho(t, s, stubVerifier{})

	e.GET("/slow", func(c echo.Context) error {
		select {
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		case <-time.After(time.Second):
			return c.NoContent(http.StatusOK)
		}
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func TestTimeoutAbortsHandlerIgnoringContext(t *testing.T) {
	s := newTestServer(t)
	s.Config.Server.RequestTimeout = 20 * time.Millisecond
	e, _ := newTestEcho(t, s, stubVerifier{})

	e.GET("/stuck", func(c echo.Context) error {
		time.Sleep(300 * time.Millisecond)
		return c.JSON(http.StatusOK, map[string]string{"ok": "late"})
	})

	srv := httptest.NewServer(e)
	defer srv.Close()

	start := time.Now()
	resp, err := http.Get(srv.URL + "/stuck")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	assert.Equal(t, "REQUEST_TIMEOUT", body["code"])
	assert.NotContains(t, body, "ok")
	assert.NotEmpty(t, resp.Header.Get(echo.HeaderXRequestID))
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestTimeoutDropsLateWrites(t *testing.T) {
	s := newTestServer(t)
	s.Config.Server.RequestTimeout = 20 * time.Millisecond
	e, _ := newTestEcho(t, s, stubVerifier{})

	e.GET("/stuck", func(c echo.Context) error {
		time.Sleep(100 * time.Millisecond)
		return c.JSON(http.StatusOK, map[string]string{"ok": "late"})
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/stuck", nil))
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.NotContains(t, rec.Body.String(), "late")
	assert.Equal(t, "REQUEST_TIMEOUT", decodeBody(t, rec)["code"])
}

func TestTimeoutLeavesFastHandlersAlone(t *testing.T) {
	s := newTestServer(t)
	e, _ := newTestEcho(t, s, stubVerifier{})

	e.GET("/fast", func(c echo.Context) error {
		c.Response().Header().Set("X-Handler", "yes")
		return c.JSON(http.StatusCreated, map[string]string{"ok": "fast"})
	})
	e.GET("/fails", func(c echo.Context) error {
		return errors.New("boom")
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Handler"))
	assert.Equal(t, "fast", decodeBody(t, rec)["ok"])

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/fails", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	s := newTestServer(t)
	e, mw := newTestEcho(t, s, stubVerifier{claims: &token.Claims{UserID: userID, Email: "ada@example.com"}})

	called := false
	var seenUser string
	e.GET("/private", func(c echo.Context) error {
		called = true
		seenUser = GetUserID(c)
		return c.NoContent(http.StatusNoContent)
	}, mw.Auth.RequireAuth)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic Zm9vOmJhcg=="},
		{"invalid token", "Bearer bad-token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}

			rec := serve(e, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)
			assert.Equal(t, "UNAUTHORIZED", decodeBody(t, rec)["code"])
		})
	}

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer good-token")

		rec := serve(e, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, called)
		assert.Equal(t, userID.String(), seenUser)
	})
}

func TestRateLimiter(t *testing.T) {
	s := newTestServer(t)
	s.Config.Server.RateLimitPerSecond = 1
	e, mw := newTestEcho(t, s, stubVerifier{})

	e.POST("/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, mw.RateLimit.RateLimiter())

	first := serve(e, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := serve(e, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", decodeBody(t, second)["code"])

	other := httptest.NewRequest(http.MethodPost, "/login", nil)
	other.RemoteAddr = "198.51.100.7:4321"
	assert.Equal(t, http.StatusOK, serve(e, other).Code, "limits are per client IP")
}
