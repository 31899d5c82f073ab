package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=10"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (r *signupRequest) Validate() error {
	return Struct(r)
}

type refRequest struct {
	Ref string `json:"ref"`
}

func (r *refRequest) Validate() error {
	if !IsValidUUID(r.Ref) {
		return CustomValidationErrors{{Field: "ref", Message: "must be a valid UUID"}}
	}
	return nil
}

func newContext(body string) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestBindAndValidate(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		req := &signupRequest{}
		err := BindAndValidate(newContext(`{"name":"Ada","email":"ada@example.com","password":"correct-horse"}`), req)
		require.NoError(t, err)
		assert.Equal(t, "Ada", req.Name)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		err := BindAndValidate(newContext(`{"name":"Ada Lovelace Byron","email":"nope","password":"short"}`), &signupRequest{})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Status)
		assert.ElementsMatch(t, []errs.FieldError{
			{Field: "name", Error: "must not exceed 10 characters"},
			{Field: "email", Error: "must be a valid email address"},
			{Field: "password", Error: "must be at least 8 characters"},
		}, httpErr.Errors)
	})

	t.Run("malformed json", func(t *testing.T) {
		err := BindAndValidate(newContext(`{"name":`), &signupRequest{})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Status)
		assert.NotEmpty(t, httpErr.Message)
	})

	t.Run("custom errors", func(t *testing.T) {
		err := BindAndValidate(newContext(`{"ref":"not-a-uuid"}`), &refRequest{})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, []errs.FieldError{{Field: "ref", Error: "must be a valid UUID"}}, httpErr.Errors)
	})
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("7f1c3c8e-2b1a-4d8e-9c55-0a7f0b1e2d3c"))
	assert.False(t, IsValidUUID("7f1c3c8e"))
}
