package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Keys a handler sets through Annotate so the request line names the
// evaluation it ran.
const (
	RunIDKey   = "run_id"
	SourcesKey = "sources"
)

// Annotate records the evaluation run id and the files it read on c.
func Annotate(c echo.Context, runID string, sources []string) {
	c.Set(RunIDKey, runID)
	c.Set(SourcesKey, sources)
}

// Logger writes one line per request. Server errors log at Error, client
// errors at Warn.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			var evt *zerolog.Event
			switch {
			case status >= http.StatusInternalServerError:
				evt = logger.Error().Err(err)
			case status >= http.StatusBadRequest:
				evt = logger.Warn().Err(err)
			default:
				evt = logger.Info()
			}

			evt = requestFields(evt, c).
				Int("status", status).
				Int64("bytes_in", c.Request().ContentLength).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if runID, ok := c.Get(RunIDKey).(string); ok {
				evt = evt.Str("run_id", runID)
			}
			if sources, ok := c.Get(SourcesKey).([]string); ok {
				evt = evt.Strs("sources", sources)
			}
			evt.Msg("request")
			return err
		}
	}
}

// Recovery turns a handler panic into a 500 and logs it with the stack.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				requestFields(logger.Error(), c).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}

func requestFields(evt *zerolog.Event, c echo.Context) *zerolog.Event {
	rid, _ := c.Get(RequestIDKey).(string)
	req := c.Request()
	evt = evt.Str("request_id", rid).Str("method", req.Method).Str("path", req.URL.Path)
	if route := c.Path(); route != "" {
		evt = evt.Str("route", route)
	}
	return evt
}
