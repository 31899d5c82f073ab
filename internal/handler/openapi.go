package handler

import (
	"fmt"
	"net/http"
	"os"

	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/labstack/echo/v4"
)

// OpenAPIUIPath is the docs page, served relative to the working directory
// together with the rest of static/.
const OpenAPIUIPath = "static/openapi.html"

// OpenAPIHandler serves the OpenAPI UI, which loads static/openapi.json.
type OpenAPIHandler struct {
	Handler
	path string
}

func NewOpenAPIHandler(s *server.Server) *OpenAPIHandler {
	return &OpenAPIHandler{
		Handler: NewHandler(s),
		path:    OpenAPIUIPath,
	}
}

// ServeOpenAPIUI serves the docs page uncached so edits show up immediately.
func (h *OpenAPIHandler) ServeOpenAPIUI(c echo.Context) error {
	templateBytes, err := os.ReadFile(h.path)

	c.Response().Header().Set("Cache-Control", "no-cache")

	if err != nil {
		return fmt.Errorf("failed to read OpenAPI UI template: %w", err)
	}

	if err := c.HTML(http.StatusOK, string(templateBytes)); err != nil {
		return fmt.Errorf("failed to write HTML response: %w", err)
	}

	return nil
}
