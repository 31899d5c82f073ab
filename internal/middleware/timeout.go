package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/labstack/echo/v4"
)

// timeoutWriter sits between a guarded handler and the real response writer.
// Once the deadline has answered the request, every later write from the
// handler is dropped.
//
// The handler gets its own header map, copied onto the real one on its first
// WriteHeader, so the guard and a late handler never touch the same map.
type timeoutWriter struct {
	w http.ResponseWriter
	h http.Header

	mu          sync.Mutex
	timedOut    bool
	wroteHeader bool
}

func newTimeoutWriter(w http.ResponseWriter) *timeoutWriter {
	return &timeoutWriter{w: w, h: w.Header().Clone()}
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.wroteHeader = true

	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = v
	}
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.writeHeaderLocked(http.StatusOK)
	return tw.w.Write(b)
}

func (tw *timeoutWriter) Flush() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return
	}
	_ = http.NewResponseController(tw.w).Flush()
}

// expire answers the request with body and reports whether it could. A
// handler that already started its response keeps it.
func (tw *timeoutWriter) expire(status int, body []byte) bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.wroteHeader {
		return false
	}
	tw.timedOut = true

	// Content-Length lets the client finish reading while the abandoned
	// handler is still running.
	header := tw.w.Header()
	header.Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	header.Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
	tw.w.WriteHeader(status)
	_, _ = tw.w.Write(body)
	_ = http.NewResponseController(tw.w).Flush()
	return true
}

type guardResult struct {
	err      error
	panicked any
	stack    []byte
}

// abortAfter runs next on its own goroutine and answers 408 as soon as
// timeout elapses, whether or not the handler honors its context.
//
// The middleware still waits for the handler to return before handing the
// echo.Context back, since echo pools contexts per request.
func abortAfter(timeout time.Duration, onTimeout func(c echo.Context)) echo.MiddlewareFunc {
	timeoutBody, _ := json.Marshal(errs.NewRequestTimeoutError(requestTimeoutMessage))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			res := c.Response()
			original := res.Writer
			tw := newTimeoutWriter(original)
			res.Writer = tw

			done := make(chan guardResult, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- guardResult{panicked: r, stack: debug.Stack()}
					}
				}()
				done <- guardResult{err: next(c)}
			}()

			timer := time.NewTimer(timeout)
			defer timer.Stop()

			var result guardResult
			expired := false

			select {
			case result = <-done:
			case <-timer.C:
				expired = tw.expire(http.StatusRequestTimeout, timeoutBody)
				result = <-done
			}

			res.Writer = original

			if result.panicked != nil {
				// Re-raised here so the recover stage sees it.
				panic(fmt.Sprintf("%v\n%s", result.panicked, result.stack))
			}

			if expired {
				onTimeout(c)
				res.Status = http.StatusRequestTimeout
				res.Committed = true
				res.Size = int64(len(timeoutBody))
				return nil
			}
			return result.err
		}
	}
}
