package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
)

// SecurityMiddlewares rewrites untrusted input before it reaches handlers.
type SecurityMiddlewares struct {
	server *server.Server
	policy *bluemonday.Policy
}

func NewSecurityMiddlewares(s *server.Server) *SecurityMiddlewares {
	return &SecurityMiddlewares{
		server: s,
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize cleans the JSON body, the query string and the path parameters.
//
// Keys starting with "$" or containing "." are dropped. String values that
// contain markup are stripped of it. Bodies that are not valid JSON are left
// untouched for the binder to reject.
func (sec *SecurityMiddlewares) Sanitize() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if err := sec.sanitizeBody(req); err != nil {
				return err
			}

			if req.URL.RawQuery != "" {
				if values, err := url.ParseQuery(req.URL.RawQuery); err == nil {
					clean := url.Values{}
					for key, vals := range values {
						if unsafeKey(key) {
							continue
						}
						for _, v := range vals {
							clean.Add(key, sec.sanitizeString(v))
						}
					}
					req.URL.RawQuery = clean.Encode()
				}
			}

			if params := c.ParamValues(); len(params) > 0 {
				clean := make([]string, len(params))
				for i, v := range params {
					clean[i] = sec.sanitizeString(v)
				}
				c.SetParamValues(clean...)
			}

			return next(c)
		}
	}
}

func (sec *SecurityMiddlewares) sanitizeBody(req *http.Request) error {
	if req.Body == nil || req.ContentLength == 0 || !isJSON(req.Header.Get(echo.HeaderContentType)) {
		return nil
	}

	// Reading through the body limit reader surfaces the 413.
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	_ = req.Body.Close()

	body := raw
	var payload any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err == nil {
		if cleaned, err := json.Marshal(sec.sanitizeValue(payload)); err == nil {
			body = cleaned
		}
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.Header.Set(echo.HeaderContentLength, strconv.Itoa(len(body)))

	return nil
}

func (sec *SecurityMiddlewares) sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, inner := range val {
			if unsafeKey(key) {
				continue
			}
			out[key] = sec.sanitizeValue(inner)
		}
		return out
	case []any:
		for i := range val {
			val[i] = sec.sanitizeValue(val[i])
		}
		return val
	case string:
		return sec.sanitizeString(val)
	default:
		return v
	}
}

// sanitizeString leaves markup-free strings byte-identical.
func (sec *SecurityMiddlewares) sanitizeString(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	return sec.policy.Sanitize(s)
}

func unsafeKey(key string) bool {
	return strings.HasPrefix(key, "$") || strings.Contains(key, ".")
}

// ParameterPollution collapses repeated query keys to their last value,
// except for keys on the configured whitelist.
func (sec *SecurityMiddlewares) ParameterPollution() echo.MiddlewareFunc {
	whitelist := sec.server.Config.Server.HPPWhitelist

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.URL.RawQuery == "" {
				return next(c)
			}

			values, err := url.ParseQuery(req.URL.RawQuery)
			if err != nil {
				return next(c)
			}

			polluted := false
			for key, vals := range values {
				if len(vals) > 1 && !slices.Contains(whitelist, key) {
					values[key] = vals[len(vals)-1:]
					polluted = true
				}
			}

			if polluted {
				GetLogger(c).Debug().Str("query", req.URL.RawQuery).Msg("collapsed repeated query parameters")
				req.URL.RawQuery = values.Encode()
			}

			return next(c)
		}
	}
}

// ValidateJSONBody rejects non-empty POST, PUT and PATCH bodies that are
// not declared as application/json with 415.
func (sec *SecurityMiddlewares) ValidateJSONBody() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			switch req.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				return next(c)
			}

			if req.ContentLength == 0 || req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if !isJSON(req.Header.Get(echo.HeaderContentType)) {
				return errs.NewUnsupportedMediaTypeError("Request body must be JSON")
			}

			return next(c)
		}
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == echo.MIMEApplicationJSON
}
